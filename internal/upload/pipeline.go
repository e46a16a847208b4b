// Package upload implements the authenticated upload-and-link pipeline:
// a multipart image is filtered by declared media type, staged in memory,
// stored under a collision-resistant key, and its public URL is bound to the
// request context for the handler that persists it.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/roundtable/service/internal/logging"
	"github.com/roundtable/service/internal/middleware"
	"github.com/roundtable/service/internal/response"
	"github.com/roundtable/service/internal/storage"
)

// multipartOverhead is the allowance for boundaries, part headers and other
// form fields on top of the file itself.
const multipartOverhead = 1 << 20

// State is a step of the per-request pipeline.
type State string

const (
	StateReceived  State = "received"
	StateFiltering State = "filtering"
	StateRejected  State = "rejected"
	StateBuffering State = "buffering"
	StateUploading State = "uploading"
	StateFailed    State = "failed"
	StateLinked    State = "linked"
	StateHandedOff State = "handed_off"
)

// Options configures a Pipeline.
type Options struct {
	// Namespace is the key prefix, e.g. "recipe-images".
	Namespace    string
	MaxBytes     int64
	CacheControl string
	// VerifyContent additionally sniffs the staged bytes and rejects files
	// whose signature does not match the declared type.
	VerifyContent bool
}

// Result describes a stored upload.
type Result struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Principal   string `json:"-"`
}

// Pipeline runs uploads against one storage namespace.
type Pipeline struct {
	store storage.Storage
	seq   *Sequence
	opts  Options
	log   logging.Logger
}

// NewPipeline creates a Pipeline. The storage client is shared, never owned.
func NewPipeline(store storage.Storage, opts Options, log logging.Logger) *Pipeline {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 10 << 20
	}
	return &Pipeline{store: store, seq: NewSequence(), opts: opts, log: log}
}

// WithNamespace returns a Pipeline for another namespace that shares the
// storage client and key sequence.
func (p *Pipeline) WithNamespace(namespace string) *Pipeline {
	cp := *p
	cp.opts.Namespace = namespace
	return &cp
}

// Namespace returns the key prefix this pipeline stores under.
func (p *Pipeline) Namespace() string {
	return p.opts.Namespace
}

// Middleware runs the pipeline on the multipart file field and, on success,
// hands off to next with the Result bound to the request context. On any
// failure the response is written here and next never runs.
func (p *Pipeline) Middleware(field string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := p.Run(w, r, field)
			if err != nil {
				p.writeError(w, r, err)
				return
			}
			p.log.Debug(r.Context(), "upload state", "state", StateHandedOff, "key", res.Key)
			next.ServeHTTP(w, r.WithContext(WithResult(r.Context(), res)))
		})
	}
}

// Run receives, filters, stages and stores the file in field. The request
// context bounds the storage call, so a client disconnect cancels it.
func (p *Pipeline) Run(w http.ResponseWriter, r *http.Request, field string) (*Result, error) {
	ctx := r.Context()
	p.log.Debug(ctx, "upload state", "state", StateReceived, "namespace", p.opts.Namespace)

	principal, ok := middleware.UserID(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}

	r.Body = http.MaxBytesReader(w, r.Body, p.opts.MaxBytes+multipartOverhead)
	staged, err := p.receive(ctx, r, field)
	if err != nil {
		p.log.Debug(ctx, "upload state", "state", StateRejected, "reason", err.Error())
		return nil, err
	}

	p.log.Debug(ctx, "upload state", "state", StateUploading, "size", staged.data.Len())
	res, err := p.Store(ctx, staged.data.Bytes(), staged.contentType, staged.filename, principal)
	if err != nil {
		p.log.Debug(ctx, "upload state", "state", StateFailed)
		return nil, err
	}
	p.log.Debug(ctx, "upload state", "state", StateLinked, "key", res.Key)
	return res, nil
}

// Store writes data under a fresh key with no-overwrite semantics and
// resolves its public URL. It makes exactly one storage call and never
// retries; a key collision surfaces as a StorageError.
func (p *Pipeline) Store(ctx context.Context, data []byte, contentType, hintName, principal string) (*Result, error) {
	key := ObjectKey(p.opts.Namespace, p.seq.Next(), hintName)

	err := p.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{
		ContentType:  contentType,
		CacheControl: p.opts.CacheControl,
		NoOverwrite:  true,
	})
	if err != nil {
		return nil, &StorageError{Key: key, Err: err}
	}

	return &Result{
		Key:         key,
		URL:         p.store.PublicURL(key),
		ContentType: contentType,
		Size:        int64(len(data)),
		Principal:   principal,
	}, nil
}

// Discard deletes a stored upload whose URL could not be persisted. It is
// detached from request cancellation since it usually runs after a failure.
func (p *Pipeline) Discard(ctx context.Context, res *Result) {
	if res == nil {
		return
	}
	if err := p.store.Delete(context.WithoutCancel(ctx), res.Key); err != nil {
		p.log.Error(ctx, "discard upload", "key", res.Key, "error", err)
		return
	}
	p.log.Info(ctx, "discarded unlinked upload", "key", res.Key)
}

type staged struct {
	data        bytes.Buffer
	contentType string
	filename    string
}

// receive streams the multipart body and stages the first file in field.
// The media type is checked before any byte of the part is read, and
// nothing is written to disk.
func (p *Pipeline) receive(ctx context.Context, r *http.Request, field string) (*staged, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFile, err)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, ErrNoFile
		}
		if err != nil {
			return nil, classifyReadError(err)
		}
		if part.FormName() != field || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		p.log.Debug(ctx, "upload state", "state", StateFiltering)
		contentType, err := Filter(part.Header.Get("Content-Type"))
		if err != nil {
			_ = part.Close()
			return nil, err
		}

		p.log.Debug(ctx, "upload state", "state", StateBuffering)
		st := &staged{contentType: contentType, filename: part.FileName()}
		n, err := st.data.ReadFrom(io.LimitReader(part, p.opts.MaxBytes+1))
		_ = part.Close()
		if err != nil {
			return nil, classifyReadError(err)
		}
		if n > p.opts.MaxBytes {
			return nil, ErrPayloadTooLarge
		}
		if n == 0 {
			return nil, ErrNoFile
		}
		if p.opts.VerifyContent {
			if err := VerifyContent(contentType, st.data.Bytes()); err != nil {
				return nil, err
			}
		}
		return st, nil
	}
}

func classifyReadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return ErrPayloadTooLarge
	}
	return fmt.Errorf("%w: %v", ErrMalformedUpload, err)
}

func (p *Pipeline) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if IsClientError(err) {
		p.log.Warn(ctx, "upload rejected", "namespace", p.opts.Namespace, "reason", err.Error())
	}

	var storageErr *StorageError
	switch {
	case errors.Is(err, ErrUnauthenticated):
		response.Unauthorized(w, "unauthorized")
	case errors.Is(err, ErrNoFile):
		response.BadRequest(w, "No file uploaded")
	case errors.Is(err, ErrMalformedUpload):
		response.BadRequest(w, "malformed upload")
	case errors.Is(err, ErrUnsupportedMediaType):
		response.UnsupportedMediaType(w, "Only JPEG, PNG, or JPG files are allowed ("+allowedList()+")")
	case errors.Is(err, ErrPayloadTooLarge):
		response.PayloadTooLarge(w, fmt.Sprintf("file exceeds the maximum size of %d bytes", p.opts.MaxBytes))
	case errors.As(err, &storageErr):
		p.log.Error(ctx, "upload to object storage failed", "key", storageErr.Key, "error", storageErr.Err)
		response.Error(w, http.StatusInternalServerError, "Error uploading image")
	default:
		p.log.Error(ctx, "upload failed", "error", err)
		response.InternalError(w)
	}
}
