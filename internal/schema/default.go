package schema

import "github.com/ocdul/social-listening/internal/models"

// DefaultTables is the production mapping of the four monitored networks
var DefaultTables = []Table{
	{
		Platform: models.PlatformFacebook, Kind: models.KindPost, Name: "posts_facebook",
		Author: Ref("owner_full_name"), Likes: Ref("reactions_like_count"),
		Comments: Ref("comments_count"), Shares: Ref("shares_count"),
		Raw: &RawSource{Table: "fb_posts", KeyColumn: "post_id", LinkColumn: "post_id"},
	},
	{
		Platform: models.PlatformFacebook, Kind: models.KindComment, Name: "comentarios_facebook",
		Author: Ref("owner_full_name"), Likes: Ref("reactions_like_count"),
		Comments: Ref("comments_count"), Shares: Zero,
		Raw: &RawSource{Table: "fb_comments", KeyColumn: "comment_id", LinkColumn: "comment_id"},
	},
	{
		Platform: models.PlatformInstagram, Kind: models.KindPost, Name: "posts_instagram",
		Author: Ref("owner_username"), Likes: Ref("likes_count"),
		Comments: Ref("comments_count"), Shares: Zero,
		Raw: &RawSource{Table: "ig_posts", KeyColumn: "post_id", LinkColumn: "post_id"},
	},
	{
		Platform: models.PlatformInstagram, Kind: models.KindComment, Name: "comentarios_instagram",
		Author: Ref("owner_username"), Likes: Ref("likes_count"),
		Comments: Zero, Shares: Zero,
		Raw: &RawSource{Table: "ig_comments", KeyColumn: "comment_id", LinkColumn: "comment_id"},
	},
	{
		Platform: models.PlatformX, Kind: models.KindPost, Name: "posts_x",
		Author: Ref("author_username"), Likes: Ref("favorite_count"),
		Comments: Ref("reply_count"), Shares: Ref("retweet_count"),
		Raw: &RawSource{Table: "x_tweets", KeyColumn: "tweet_id", LinkColumn: "tweet_id"},
	},
	{
		Platform: models.PlatformX, Kind: models.KindReply, Name: "respuestas_x",
		Author: Ref("author_username"), Likes: Ref("favorite_count"),
		Comments: Ref("reply_count"), Shares: Ref("retweet_count"),
		Raw: &RawSource{Table: "x_replies", KeyColumn: "tweet_id", LinkColumn: "tweet_id"},
	},
	{
		Platform: models.PlatformX, Kind: models.KindQuote, Name: "quotes_x",
		Author: Ref("author_username"), Likes: Ref("favorite_count"),
		Comments: Ref("reply_count"), Shares: Ref("retweet_count"),
		Raw: &RawSource{Table: "x_quotes", KeyColumn: "tweet_id", LinkColumn: "tweet_id"},
	},
	{
		Platform: models.PlatformTikTok, Kind: models.KindPost, Name: "posts_tiktok",
		Author: Ref("author_username"), Likes: Ref("digg_count"),
		Comments: Ref("comment_count"), Shares: Ref("share_count"),
		Raw: &RawSource{Table: "tiktok_videos", KeyColumn: "video_id", LinkColumn: "video_id"},
	},
	{
		Platform: models.PlatformTikTok, Kind: models.KindComment, Name: "comentarios_tiktok",
		Author: Ref("author_username"), Likes: Ref("digg_count"),
		Comments: Ref("reply_count"), Shares: Zero,
		Raw: &RawSource{Table: "tiktok_comments", KeyColumn: "comment_id", LinkColumn: "comment_id"},
	},
}

// Default builds the registry from DefaultTables
func Default() *Registry {
	r, err := NewRegistry(DefaultTables)
	if err != nil {
		panic("schema: invalid default registry: " + err.Error())
	}
	return r
}
