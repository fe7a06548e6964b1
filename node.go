package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"localboard/internal/board"
	"localboard/internal/config"
	"localboard/internal/logger"
	peernet "localboard/internal/net"
	"localboard/internal/storage"
	"localboard/internal/worker"
)

var log = logger.Tag("node")

const shutdownTimeout = 5 * time.Second

// node is one peer: the board replica plus whatever carries it to the
// network and to disk.
type node struct {
	cfg   *config.Config
	board *board.Board

	db       *gorm.DB
	pool     *worker.Pool
	recorder *storage.Recorder

	mu      sync.Mutex
	publish func(board.Event)
}

func newNode(cfg *config.Config) (*node, error) {
	n := &node{cfg: cfg}
	n.board = board.New(board.Config{
		UserID:            cfg.Peer.UserID,
		Limits:            cfg.Batch.Limits(),
		Erase:             cfg.Erase,
		MaxHistory:        cfg.History.MaxPerUser,
		LineageRetention:  cfg.Lineage.Retention.Duration,
		LineageMaxEntries: cfg.Lineage.MaxEntries,
		OnEvent:           n.onEvent,
		OnRemote:          n.onRemote,
		OnConflict: func(c board.Conflict) {
			log.Warnf("%s %s by %s on %s: %s", c.Type, c.ActionID, c.UserID, c.ObjectID, c.Resolution)
		},
	})
	if !cfg.Storage.Enabled {
		return n, nil
	}

	db, err := storage.Connect(cfg.Storage.Options())
	if err != nil {
		return nil, err
	}
	boardID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(config.AppName+":"+cfg.Peer.BoardName))
	if cfg.Storage.BoardID != "" {
		boardID = uuid.MustParse(cfg.Storage.BoardID)
	}
	n.db = db
	n.pool = worker.NewPool(cfg.Storage.Workers, cfg.Storage.QueueSize)
	n.recorder = storage.NewRecorder(storage.NewRepository(db), n.pool, boardID)
	log.Infof("recording board %s", boardID)
	return n, nil
}

func (n *node) onEvent(e board.Event) {
	n.mu.Lock()
	publish := n.publish
	n.mu.Unlock()
	if publish != nil {
		publish(e)
	}
	if n.recorder != nil {
		n.recorder.Record(e)
	}
}

// onRemote logs what peers changed on this board; it is never republished.
func (n *node) onRemote(e board.Event) {
	if n.recorder != nil {
		n.recorder.Record(e)
	}
}

func (n *node) setPublisher(f func(board.Event)) {
	n.mu.Lock()
	n.publish = f
	n.mu.Unlock()
}

// host serves the board until ctx ends. A board file, when given, takes
// precedence over the stored copy.
func (n *node) host(ctx context.Context, openPath string) error {
	if openPath != "" {
		if err := n.board.OpenFile(openPath); err != nil {
			return fmt.Errorf("open board: %w", err)
		}
	} else if n.recorder != nil {
		if _, err := n.recorder.Restore(ctx, n.board); err != nil {
			log.Errorf("%v", err)
		}
	}

	hub := peernet.NewHub(n.board)
	n.setPublisher(hub.Publish)
	mux := http.NewServeMux()
	mux.Handle(peernet.Path, hub)

	port := n.cfg.Peer.Port
	srv := &http.Server{
		Addr:              net.JoinHostPort(n.cfg.Peer.Listen, strconv.Itoa(port)),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	fmt.Printf("Share this link: %s\n", peernet.ShareLink(peernet.OutgoingIP(), port))

	if n.cfg.Peer.Advertise {
		mdnsServer, err := peernet.Advertise(port, n.cfg.Peer.BoardName)
		if err != nil {
			log.Warnf("%v", err)
		} else {
			defer mdnsServer.Shutdown()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("host listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		hub.Close()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	g.Go(func() error { return n.maintain(gctx) })
	return g.Wait()
}

// join mirrors the board hosted behind link until ctx ends or the host goes
// away.
func (n *node) join(ctx context.Context, link string) error {
	addr, err := peernet.ParseShareLink(link)
	if err != nil {
		return err
	}
	dctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	client, err := peernet.Dial(dctx, peernet.WebSocketURL(addr), n.board)
	cancel()
	if err != nil {
		return err
	}
	n.setPublisher(client.Publish)
	defer client.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return client.Run(gctx) })
	g.Go(func() error { return n.maintain(gctx) })
	return g.Wait()
}

// maintain prunes the lineage table and snapshots the board to storage on
// their configured intervals.
func (n *node) maintain(ctx context.Context) error {
	prune := time.NewTicker(n.cfg.Lineage.PruneInterval.Duration)
	defer prune.Stop()
	var snapshots <-chan time.Time
	if n.recorder != nil {
		t := time.NewTicker(n.cfg.Storage.SnapshotInterval.Duration)
		defer t.Stop()
		snapshots = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-prune.C:
			n.board.PruneLineage()
		case <-snapshots:
			n.recorder.SaveObjects(n.board.Objects())
		}
	}
}

// close flushes pending storage writes.
func (n *node) close() {
	n.setPublisher(nil)
	if n.recorder == nil {
		return
	}
	n.recorder.SaveObjects(n.board.Objects())
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := n.pool.Shutdown(ctx); err != nil {
		log.Warnf("storage writes still pending: %v", err)
	}
	if err := storage.Close(n.db); err != nil {
		log.Warnf("close database: %v", err)
	}
}
