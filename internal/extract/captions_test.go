package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func TestIsEnglishCaption(t *testing.T) {
	tests := []struct {
		name    string
		caption string
		want    bool
	}{
		{
			name:    "single token kept",
			caption: "Batman",
			want:    false,
		},
		{
			name:    "portuguese dominant kept",
			caption: "Imagem de divulgação da série",
			want:    false,
		},
		{
			name:    "the prefix with two tokens",
			caption: "The Batman",
			want:    true,
		},
		{
			name:    "english common words ratio",
			caption: "A scene from the new movie",
			want:    true,
		},
		{
			name:    "proper nouns with english connective",
			caption: "Robert Downey Jr as Doctor Doom in Avengers Doomsday",
			want:    true,
		},
		{
			name:    "portuguese with credit kept",
			caption: "Foto de reprodução do jogo entre os times",
			want:    false,
		},
		{
			name:    "empty kept",
			caption: "",
			want:    false,
		},
		{
			name:    "this prefix",
			caption: "This image shows the cast",
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEnglishCaption(tt.caption); got != tt.want {
				t.Errorf("IsEnglishCaption(%q) = %v, want %v", tt.caption, got, tt.want)
			}
		})
	}
}

func TestFilterCaptionsBlanksInPlace(t *testing.T) {
	page := `<article>
	<figure><img src="https://cdn.example.com/a.jpg"><figcaption>The new poster for the movie</figcaption></figure>
	<figure><img src="https://cdn.example.com/b.jpg"><figcaption>Divulgação oficial do filme</figcaption></figure>
	</article>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	root := doc.Find("article")

	FilterCaptions(root)

	captions := root.Find("figcaption")
	if captions.Length() != 2 {
		t.Fatalf("figcaption count = %d, want both preserved", captions.Length())
	}
	if text := captions.Eq(0).Text(); text != "" {
		t.Errorf("english caption = %q, want blanked", text)
	}
	if text := captions.Eq(1).Text(); text != "Divulgação oficial do filme" {
		t.Errorf("portuguese caption = %q, want untouched", text)
	}
}
