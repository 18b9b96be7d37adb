package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ahamlinman/zipstream/internal/archive"
	"github.com/ahamlinman/zipstream/internal/log"
	"github.com/ahamlinman/zipstream/internal/session"
	"github.com/ahamlinman/zipstream/internal/stream"
)

// NotFoundMessage is the body of the response for an archive that does not
// exist.
const NotFoundMessage = "archive does not exist or has been deleted"

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	identifier := r.PathValue("identifier")

	dir, err := h.resolver.Resolve(identifier)
	switch {
	case errors.Is(err, archive.ErrNotFound):
		h.sessions.RecordNotFound()
		http.Error(w, NotFoundMessage, http.StatusNotFound)
		return
	case err != nil:
		h.logger.Errorf("Resolving archive %q: %v", identifier, err)
		http.Error(w, "unable to locate archive", http.StatusInternalServerError)
		return
	}

	ctx, sess := h.sessions.Begin(r.Context(), identifier)
	as := &archiveStream{
		Handler:    h,
		session:    sess,
		identifier: identifier,
	}
	as.logger = log.T(h.logger, as)
	as.serve(ctx, w, dir)
}

// archiveStream drives a single archive from its producer to a client.
type archiveStream struct {
	*Handler
	session     *session.Session
	identifier  string
	logger      log.Logger
	headersSent bool
}

func (as *archiveStream) serve(ctx context.Context, w http.ResponseWriter, dir string) {
	as.logger.Infof("Streaming %s", dir)
	defer as.session.End(session.StateFailed) // only takes effect if stream panics

	state, err := as.stream(ctx, w, dir)
	as.session.End(state)
	status := as.session.Status()

	switch state {
	case session.StateCompleted:
		as.logger.Infof("Sent %d bytes in %d chunks", status.Bytes, status.Chunks)

	case session.StateDisconnected:
		as.logger.Infof("Client disconnected after %d bytes: %v", status.Bytes, err)

	case session.StateCancelled:
		as.logger.Infof("Download cancelled after %d bytes: %v", status.Bytes, err)
		panic(http.ErrAbortHandler)

	default:
		as.logger.Errorf("Archive creation failed: %v", err)
		if !as.headersSent {
			http.Error(w, "unable to create archive", http.StatusInternalServerError)
			return
		}
		panic(http.ErrAbortHandler)
	}
}

// stream produces the archive and copies it to w, returning the state that the
// session ended in. The producer is released before stream returns, however it
// returns.
func (as *archiveStream) stream(ctx context.Context, w http.ResponseWriter, dir string) (session.State, error) {
	src, err := as.producer.Produce(ctx, dir)
	if err != nil {
		return classify(ctx, err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			as.logger.Warnf("Releasing archive producer: %v", err)
		}
	}()

	header := w.Header()
	header.Set("Content-Type", "application/zip")
	header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, as.identifier))
	w.WriteHeader(http.StatusOK)
	as.headersSent = true
	// Not every ResponseWriter can flush; the first chunk will send the headers
	// in that case.
	_ = http.NewResponseController(w).Flush()
	as.session.SetState(session.StateStreaming)

	copier := stream.Copier{
		ChunkSize: as.config.ChunkSize,
		Delay:     as.config.Delay,
		OnChunk:   as.session.Progress,
	}
	_, err = copier.Copy(ctx, w, src)
	return classify(ctx, err)
}

// classify maps the result of a stream to the state its session ends in.
// A context cancelled without a cause means net/http saw the client go away;
// any other cause means the server stopped the stream on purpose.
func classify(ctx context.Context, err error) (session.State, error) {
	switch {
	case err == nil:
		return session.StateCompleted, nil

	case errors.Is(err, stream.ErrClientDisconnected):
		return session.StateDisconnected, err

	case ctx.Err() != nil:
		cause := context.Cause(ctx)
		if errors.Is(cause, context.Canceled) {
			return session.StateDisconnected, cause
		}
		return session.StateCancelled, cause

	default:
		return session.StateFailed, err
	}
}
