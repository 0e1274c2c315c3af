package wordpress

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/h2non/gock"
)

var longContent = "<p>" + strings.Repeat("Conteúdo reescrito para publicação. ", 10) + "</p>"

func TestSanitizePostPayload(t *testing.T) {
	payload := map[string]any{
		"title":          "Título <b>com</b> markup",
		"content":        longContent,
		"categories":     []any{float64(3), "7", "não-numérico"},
		"tags":           []any{},
		"featured_media": float64(0),
		"status":         "draft",
		"seo_score":      95,
		"meta":           map[string]any{"_yoast_wpseo_canonical": "https://example.com/a"},
	}
	got := sanitizePostPayload(payload)

	want := map[string]any{
		"title":   "Título com markup",
		"content": longContent,
		"status":  "publish",
		"meta":    map[string]any{"_yoast_wpseo_canonical": "https://example.com/a"},
	}
	if diff := cmp.Diff(want["title"], got["title"]); diff != "" {
		t.Errorf("title mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{3, 7}, got["categories"]); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
	if _, ok := got["tags"]; ok {
		t.Error("empty tags should be dropped")
	}
	if _, ok := got["featured_media"]; ok {
		t.Error("zero featured_media should be dropped")
	}
	if _, ok := got["seo_score"]; ok {
		t.Error("unknown field should be dropped")
	}
	if got["status"] != "publish" {
		t.Errorf("status = %v, want publish", got["status"])
	}
}

func TestCreatePost(t *testing.T) {
	client := newTestClient(t)

	gock.New(testSite).
		Post("/wp-json/wp/v2/posts").
		Reply(201).
		JSON(Post{ID: 101, Link: testSite + "/novo-post", Slug: "novo-post"})

	post, err := client.CreatePost(context.Background(), map[string]any{
		"title":   "Título final do artigo",
		"content": longContent,
	})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if post.ID != 101 || post.Slug != "novo-post" {
		t.Errorf("post = %+v", post)
	}
}

func TestCreatePostRejectsShortContent(t *testing.T) {
	client := newTestClient(t)

	_, err := client.CreatePost(context.Background(), map[string]any{
		"title":   "Título",
		"content": "<p>curto</p>",
	})
	if err == nil || !strings.Contains(err.Error(), "too short") {
		t.Fatalf("err = %v, want content too short", err)
	}
	if !gock.IsDone() {
		t.Error("no request should have been sent")
	}
}

func TestSanitizePublishedPostClean(t *testing.T) {
	client := newTestClient(t)

	gock.New(testSite).
		Get("/wp-json/wp/v2/posts/101").
		Reply(200).
		JSON(map[string]any{
			"id":      101,
			"content": map[string]string{"raw": longContent},
		})

	if err := client.SanitizePublishedPost(context.Background(), 101); err != nil {
		t.Fatalf("SanitizePublishedPost: %v", err)
	}
}

func TestSanitizePublishedPostRecleans(t *testing.T) {
	client := newTestClient(t)
	client.sleep = func(context.Context, time.Duration) error { return nil }

	dirty := longContent + "<p>Thank you for reading this post, don't forget to subscribe!</p>"

	gock.New(testSite).
		Get("/wp-json/wp/v2/posts/101").
		Reply(200).
		JSON(map[string]any{"id": 101, "content": map[string]string{"raw": dirty}})
	gock.New(testSite).
		Post("/wp-json/wp/v2/posts/101").
		Reply(200).
		JSON(map[string]any{"id": 101})
	gock.New(testSite).
		Get("/wp-json/wp/v2/posts/101").
		Reply(200).
		JSON(map[string]any{"id": 101, "content": map[string]string{"raw": longContent}})

	if err := client.SanitizePublishedPost(context.Background(), 101); err != nil {
		t.Fatalf("SanitizePublishedPost: %v", err)
	}
	if !gock.IsDone() {
		t.Error("expected update request to be sent")
	}
}
