package feed

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed binds to loopback only; any local page may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server serves the websocket event feed on a loopback address.
type Server struct {
	hub  *Hub
	addr string
	srv  *http.Server
}

func NewServer(hub *Hub, addr string) *Server {
	return &Server{hub: hub, addr: addr}
}

// Start begins serving in the background. The server shuts down when ctx
// is cancelled.
func (s *Server) Start(ctx context.Context) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ws", s.handleWS)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"clients": s.hub.ClientCount()})
	})

	s.srv = &http.Server{Addr: s.addr, Handler: router}

	go func() {
		log.Printf("feed: listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("feed: server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("feed: upgrade failed: %v", err)
		return
	}

	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)
	defer conn.Close()

	// Drain (and discard) reads so close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
