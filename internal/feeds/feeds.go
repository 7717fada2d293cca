// Package feeds pulls recent post titles from a club's website feed so
// research prompts can reference what the club has actually published.
package feeds

import (
	"context"
	"html"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/photoreach/club-outreach/internal/pkg/logger"
)

// Feed autodiscovery paths tried against the club website, in order.
var feedPaths = []string{"/feed", "/rss", "/feed.xml", "/atom.xml", "/rss.xml"}

// Post is one entry from a club feed.
type Post struct {
	Title     string
	Link      string
	Published time.Time
}

// Scout fetches and parses club website feeds.
type Scout struct {
	parser   *gofeed.Parser
	maxPosts int
}

// NewScout creates a scout that returns at most maxPosts recent posts per
// club.
func NewScout(maxPosts int) *Scout {
	if maxPosts <= 0 {
		maxPosts = 5
	}
	return &Scout{
		parser:   gofeed.NewParser(),
		maxPosts: maxPosts,
	}
}

// RecentPosts tries the website's common feed locations and returns the most
// recent posts found. A club without a working feed is normal; the error is
// logged at debug level and an empty slice returned so research proceeds
// without feed context.
func (s *Scout) RecentPosts(ctx context.Context, website string) []Post {
	if website == "" {
		return nil
	}
	base := strings.TrimRight(website, "/")

	for _, path := range feedPaths {
		feed, err := s.parser.ParseURLWithContext(base+path, ctx)
		if err != nil {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		return s.collect(feed)
	}

	// Last attempt: the URL may already point at the feed itself.
	if feed, err := s.parser.ParseURLWithContext(website, ctx); err == nil {
		return s.collect(feed)
	}

	logger.Debug("no feed found for website", "website", website)
	return nil
}

// Titles is a convenience for prompt building.
func Titles(posts []Post) []string {
	titles := make([]string, 0, len(posts))
	for _, p := range posts {
		titles = append(titles, p.Title)
	}
	return titles
}

func (s *Scout) collect(feed *gofeed.Feed) []Post {
	posts := make([]Post, 0, len(feed.Items))
	for _, item := range feed.Items {
		p := Post{
			Title: cleanTitle(item.Title),
			Link:  item.Link,
		}
		if p.Title == "" {
			continue
		}
		if item.PublishedParsed != nil {
			p.Published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			p.Published = *item.UpdatedParsed
		}
		posts = append(posts, p)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Published.After(posts[j].Published)
	})
	if len(posts) > s.maxPosts {
		posts = posts[:s.maxPosts]
	}
	return posts
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

func cleanTitle(input string) string {
	text := tagRe.ReplaceAllString(input, "")
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}
