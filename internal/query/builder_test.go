package query

import (
	"strings"
	"testing"
	"time"

	"github.com/ocdul/social-listening/internal/models"
	"github.com/ocdul/social-listening/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams(platforms ...models.Platform) Params {
	return Params{
		AlertID:   7,
		Platforms: platforms,
		Start:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC),
	}
}

func TestBuilder_UnifiedCompleteness(t *testing.T) {
	b := NewBuilder(schema.Default(), "ocdul")

	tests := []struct {
		name           string
		platforms      []models.Platform
		sentiment      models.Sentiment
		expectedTables []string
	}{
		{
			name:           "Single platform without sentiment",
			platforms:      []models.Platform{models.PlatformFacebook},
			expectedTables: []string{"posts_facebook", "comentarios_facebook"},
		},
		{
			name:           "X with sentiment",
			platforms:      []models.Platform{models.PlatformX},
			sentiment:      models.SentimentNegative,
			expectedTables: []string{"posts_x", "respuestas_x", "quotes_x"},
		},
		{
			name:      "All platforms",
			platforms: models.AllPlatforms,
			sentiment: models.SentimentPositive,
			expectedTables: []string{
				"posts_facebook", "comentarios_facebook",
				"posts_x", "respuestas_x", "quotes_x",
				"posts_instagram", "comentarios_instagram",
				"posts_tiktok", "comentarios_tiktok",
			},
		},
		{
			name:           "Unknown platforms are skipped",
			platforms:      []models.Platform{"Mastodon", models.PlatformTikTok},
			expectedTables: []string{"posts_tiktok", "comentarios_tiktok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams(tt.platforms...)
			p.Sentiment = tt.sentiment

			q, err := b.Unified(p, 100)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedTables, q.Tables)
			assert.Equal(t, len(tt.expectedTables)-1, strings.Count(q.SQL, "UNION ALL"))

			perTable := 4
			if tt.sentiment != models.SentimentAll {
				perTable = 5
			}
			require.Len(t, q.Args, perTable*len(tt.expectedTables))

			for i, table := range tt.expectedTables {
				chunk := q.Args[i*perTable : (i+1)*perTable]
				registered, ok := schema.Default().Lookup(table)
				require.True(t, ok)
				assert.Equal(t, int64(7), chunk[0])
				assert.Equal(t, string(registered.Platform), chunk[1])
				assert.Equal(t, p.Start, chunk[2])
				assert.Equal(t, p.End, chunk[3])
				if perTable == 5 {
					assert.Equal(t, string(tt.sentiment), chunk[4])
				}
				assert.Contains(t, q.SQL, "FROM ocdul."+table+"\n")
				assert.Contains(t, q.SQL, "'"+table+"' AS table_source")
			}
		})
	}
}

func TestBuilder_PlaceholderAlignment(t *testing.T) {
	b := NewBuilder(schema.Default(), "")
	sentiments := []models.Sentiment{models.SentimentAll, models.SentimentPositive, models.SentimentNeutral, "bogus"}
	limits := []int{0, 1, 500}

	for _, platforms := range [][]models.Platform{
		{models.PlatformFacebook},
		{models.PlatformInstagram, models.PlatformX},
		models.AllPlatforms,
	} {
		for _, s := range sentiments {
			p := testParams(platforms...)
			p.Sentiment = s

			for _, limit := range limits {
				q, err := b.Unified(p, limit)
				require.NoError(t, err)
				assert.Equal(t, strings.Count(q.SQL, "?"), len(q.Args))
			}

			for _, build := range []func(Params) (Query, error){b.Count, b.Timeline, b.SentimentBreakdown} {
				q, err := build(p)
				require.NoError(t, err)
				assert.Equal(t, strings.Count(q.SQL, "?"), len(q.Args))
			}
		}
	}
}

func TestBuilder_Limit(t *testing.T) {
	b := NewBuilder(schema.Default(), "ocdul")

	q, err := b.Unified(testParams(models.PlatformX), 25)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(q.SQL, "ORDER BY created_time DESC\nLIMIT 25"))

	q, err = b.Unified(testParams(models.PlatformX), 0)
	require.NoError(t, err)
	assert.NotContains(t, q.SQL, "LIMIT")
}

func TestBuilder_InvalidSentimentIsNotFiltered(t *testing.T) {
	b := NewBuilder(schema.Default(), "ocdul")
	p := testParams(models.PlatformFacebook)
	p.Sentiment = "ANGRY"

	q, err := b.Unified(p, 10)
	require.NoError(t, err)
	assert.NotContains(t, q.SQL, "sentiment_pred = ?")
	assert.Len(t, q.Args, 8)
}

func TestBuilder_EmptyScope(t *testing.T) {
	b := NewBuilder(schema.Default(), "ocdul")

	tests := []struct {
		name      string
		platforms []models.Platform
	}{
		{"No platforms", nil},
		{"Only unknown platforms", []models.Platform{"MySpace"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams(tt.platforms...)

			q, err := b.Unified(p, 10)
			assert.ErrorIs(t, err, ErrNoQuery)
			assert.Empty(t, q.SQL)

			_, err = b.Count(p)
			assert.ErrorIs(t, err, ErrNoQuery)
			_, err = b.Timeline(p)
			assert.ErrorIs(t, err, ErrNoQuery)
			_, err = b.SentimentBreakdown(p)
			assert.ErrorIs(t, err, ErrNoQuery)
		})
	}
}

func TestBuilder_Count(t *testing.T) {
	b := NewBuilder(schema.Default(), "ocdul")
	q, err := b.Count(testParams(models.PlatformInstagram))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(q.SQL, "SELECT COALESCE(SUM(n), 0) AS total FROM ("))
	assert.Equal(t, 2, strings.Count(q.SQL, "COUNT(*)"))
	assert.NotContains(t, q.SQL, "LIMIT")
}

func TestBuilder_LastUpdated(t *testing.T) {
	b := NewBuilder(schema.Default(), "ocdul")
	q, err := b.LastUpdated(42)
	require.NoError(t, err)

	assert.Len(t, q.Tables, 9)
	assert.Len(t, q.Args, 9)
	assert.Equal(t, strings.Count(q.SQL, "?"), len(q.Args))
	for _, arg := range q.Args {
		assert.Equal(t, int64(42), arg)
	}

	empty, err := schema.NewRegistry(nil)
	require.NoError(t, err)
	_, err = NewBuilder(empty, "").LastUpdated(42)
	assert.ErrorIs(t, err, ErrNoQuery)
}

func TestBuilder_Aggregates(t *testing.T) {
	b := NewBuilder(schema.Default(), "ocdul")
	p := testParams(models.PlatformX, models.PlatformTikTok)
	p.Sentiment = models.SentimentPositive

	timeline, err := b.Timeline(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"posts_x", "respuestas_x", "quotes_x", "posts_tiktok", "comentarios_tiktok"}, timeline.Tables)
	assert.Equal(t, 5, strings.Count(timeline.SQL, "GROUP BY DATE(created_time), origin"))
	assert.True(t, strings.HasSuffix(timeline.SQL, "ORDER BY day, platform"))
	assert.Equal(t, strings.Count(timeline.SQL, "?"), len(timeline.Args))
	assert.Len(t, timeline.Args, 25)

	breakdown, err := b.SentimentBreakdown(p)
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(breakdown.SQL, "GROUP BY sentiment_pred"))
	assert.Equal(t, strings.Count(breakdown.SQL, "?"), len(breakdown.Args))
	assert.Equal(t, timeline.Args, breakdown.Args, "aggregates filter exactly like the fetch")
}

func TestBuilder_MissingAuthorProjectsNull(t *testing.T) {
	reg, err := schema.NewRegistry([]schema.Table{
		{Platform: models.PlatformX, Kind: models.KindQuote, Name: "quotes_x", Likes: schema.Ref("favorite_count")},
	})
	require.NoError(t, err)

	q, err := NewBuilder(reg, "").Unified(testParams(models.PlatformX), 10)
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "NULL AS author")
	assert.Contains(t, q.SQL, "favorite_count AS likes")
	assert.Contains(t, q.SQL, "FROM quotes_x")
}
