package feeds

import "pressbot/internal/model"

// Sources returns the configured feed sources in ingestion order.
// Position fixes the order the ingestion cycle walks them.
func Sources() []model.FeedSource {
	return []model.FeedSource{
		{
			ID:       "screenrant_movie_news",
			Name:     "ScreenRant",
			URLs:     []string{"https://screenrant.com/feed/movie-news/"},
			Category: "Filmes",
			Position: 0,
		},
		{
			ID:       "screenrant_tv_news",
			Name:     "ScreenRant",
			URLs:     []string{"https://screenrant.com/feed/tv-news/"},
			Category: "Séries",
			Position: 1,
		},
		{
			ID:       "collider_movienews",
			Name:     "Collider",
			URLs:     []string{"https://collider.com/feed/category/movie-news/"},
			Category: "Filmes",
			Position: 2,
		},
		{
			ID:       "gamerant_news",
			Name:     "GameRant",
			URLs:     []string{"https://gamerant.com/feed/gaming/"},
			Category: "Games",
			Position: 3,
		},
		{
			ID:       "comicbook_news",
			Name:     "ComicBook",
			URLs:     []string{"https://comicbook.com/feed/rss/"},
			Category: "HQs",
			Position: 4,
		},
		{
			ID:       "lance_futebol",
			Name:     "Lance",
			URLs:     []string{"https://www.lance.com.br/arc/outboundfeeds/rss/"},
			Category: "Futebol",
			Position: 5,
		},
		{
			ID:       "ge_futebol",
			Name:     "GE",
			URLs:     []string{"https://ge.globo.com/rss/futebol/"},
			Category: "Futebol",
			Position: 6,
		},
	}
}

// SourceByID looks a source up by its identifier.
func SourceByID(id string) (model.FeedSource, bool) {
	for _, s := range Sources() {
		if s.ID == id {
			return s, true
		}
	}
	return model.FeedSource{}, false
}
