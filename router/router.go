package router

import (
	"net/http"

	postHandler "postbase/internal/post"
	"postbase/internal/post/service"
	"postbase/middleware"
	"postbase/socket"
)

func Setup(svc *service.PostService, hub *socket.Hub, jwtSecret string) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.WithRole(jwtSecret)

	// Live updates for the view page. Viewing is open to anonymous users;
	// the role middleware still runs so forged tokens are rejected.
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r)
	})
	mux.Handle("/ws", auth(wsHandler))

	h := postHandler.NewPostHandler(svc)

	mux.Handle("/api/posts", auth(http.HandlerFunc(h.GetPosts)))
	mux.Handle("/api/posts/get", auth(http.HandlerFunc(h.GetPost)))
	mux.Handle("/api/posts/create", auth(http.HandlerFunc(h.CreatePost)))
	mux.Handle("/api/posts/update", auth(http.HandlerFunc(h.UpdatePost)))
	mux.Handle("/api/posts/delete", auth(http.HandlerFunc(h.DeletePost)))
	mux.Handle("/api/posts/reindex", auth(http.HandlerFunc(h.Reindex)))

	return middleware.CORSMiddleware(mux)
}
