package watch

import (
	"context"
	"log/slog"

	"github.com/ryohey/warp/internal/compiler"
	"github.com/ryohey/warp/internal/engine"
	"github.com/ryohey/warp/internal/ir"
)

// Enqueuer accepts session requests. *engine.Session implements it.
type Enqueuer interface {
	Enqueue(engine.Request) bool
}

// ReloadFile returns a ChangeHandler that enqueues a reload of the changed
// path. The file is read and decoded when the session runs the request.
func ReloadFile(q Enqueuer, opts ...compiler.TreeOption) ChangeHandler {
	return func(path string) {
		ok := q.Enqueue(engine.Request{
			Kind:   engine.RequestReload,
			Source: path,
			Load: func(context.Context) (*ir.NodeRecord, error) {
				return LoadFile(path, opts...)
			},
		})
		if !ok {
			slog.Warn("reload dropped, session closed", "path", path)
		}
	}
}

// ReloadTree returns a TreeHandler that enqueues a reload of an already
// decoded tree.
func ReloadTree(q Enqueuer) TreeHandler {
	return func(source string, tree *ir.NodeRecord) {
		if !q.Enqueue(engine.Request{Kind: engine.RequestReload, Source: source, Tree: tree}) {
			slog.Warn("reload dropped, session closed", "source", source)
		}
	}
}
