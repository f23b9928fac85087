// Package promptdex embeds the promptdex search engine in a Go process.
//
// The client talks to the same Valkey, Redis or PostgreSQL deployment the
// promptdex server uses and exposes hybrid search, autocomplete, similar-prompt
// lookup and index synchronization without going through HTTP.
//
//	client, _ := promptdex.New(ctx,
//	    promptdex.WithValkey("localhost:6379", ""),
//	    promptdex.WithEmbedder(myEmbedder, "text-embedding-3-small", 1536),
//	)
//	defer client.Close()
//
//	me := promptdex.Principal{UserID: "u1", WorkspaceID: "ws1"}
//	_, _ = client.Upsert(ctx, promptdex.Item{ID: "p1", Title: "Cold email", OwnerID: "u1"})
//	page, _ := client.Query("cold outreach").As(me).Tags("sales").Limit(10).Do(ctx)
//	hints := client.Suggest(ctx, me, "cold", promptdex.SuggestOptions{})
package promptdex
