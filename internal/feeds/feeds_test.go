package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Boise Camera Club</title>
  <link>https://boisecameraclub.org</link>
  <item>
    <title>Spring Print Competition Results</title>
    <link>https://boisecameraclub.org/spring-results</link>
    <pubDate>Mon, 03 Aug 2026 10:00:00 +0000</pubDate>
  </item>
  <item>
    <title>June Field Trip: &amp; the Sawtooths</title>
    <link>https://boisecameraclub.org/field-trip</link>
    <pubDate>Wed, 10 Jun 2026 10:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Welcome New Members</title>
    <link>https://boisecameraclub.org/welcome</link>
    <pubDate>Thu, 01 Jan 2026 10:00:00 +0000</pubDate>
  </item>
</channel>
</rss>`

func TestRecentPostsAutodiscovery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleRSS)
	}))
	defer server.Close()

	scout := NewScout(2)
	posts := scout.RecentPosts(context.Background(), server.URL)
	require.Len(t, posts, 2)

	assert.Equal(t, "Spring Print Competition Results", posts[0].Title)
	assert.Equal(t, "June Field Trip: & the Sawtooths", posts[1].Title)
	assert.True(t, posts[0].Published.After(posts[1].Published))
}

func TestRecentPostsNoFeed(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	scout := NewScout(5)
	posts := scout.RecentPosts(context.Background(), server.URL)
	assert.Empty(t, posts)
}

func TestRecentPostsEmptyWebsite(t *testing.T) {
	scout := NewScout(5)
	assert.Nil(t, scout.RecentPosts(context.Background(), ""))
}

func TestTitles(t *testing.T) {
	posts := []Post{{Title: "a"}, {Title: "b"}}
	assert.Equal(t, []string{"a", "b"}, Titles(posts))
}
