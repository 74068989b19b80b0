// Package controller owns the interaction state of a single-image
// classification session: the selected image and its preview handle, the
// in-flight flag, and the last result or error.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/expression-client/internal/classifier"
	"github.com/example/expression-client/internal/logging"
	"github.com/example/expression-client/internal/preview"
)

// Messages surfaced through State.Error.
const (
	MsgNoSelection  = "No image selected for analysis."
	MsgNotImage     = "Selected file is not an image."
	MsgNotDetected  = "Expression not detected."
	MsgUploadFailed = "An error occurred while uploading the file."
)

var (
	// ErrNoSelection is returned when there is no image to select or submit.
	ErrNoSelection = errors.New("no image selected")
	// ErrNotImage is returned when the selected content is not an image.
	ErrNotImage = errors.New("selected file is not an image")
	// ErrInFlight is returned when a submission is already awaiting its response.
	ErrInFlight = errors.New("submission already in flight")
)

type selection struct {
	image  *classifier.Image
	handle preview.Handle
}

// Controller is safe for concurrent use. The network call runs without the
// lock held; only state transitions are serialized.
type Controller struct {
	client   classifier.Client
	previews preview.Allocator
	logger   *zap.Logger

	mu        sync.Mutex
	selection *selection
	result    *Result
	errMsg    string
	inFlight  bool
	// generation is bumped by every submit and cancel; a completion whose
	// generation is no longer current is discarded.
	generation uint64
}

// New constructs a controller in the no-selection state.
func New(client classifier.Client, previews preview.Allocator, logger *zap.Logger) *Controller {
	return &Controller{
		client:   client,
		previews: previews,
		logger:   logger.Named("submission_controller"),
	}
}

// SelectImage makes image the current selection, releasing the preview handle
// of the previous one. A nil or empty image, or content that is not an image,
// only sets the error message; the existing selection is kept.
func (c *Controller) SelectImage(image *classifier.Image) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if image == nil || len(image.Data) == 0 {
		c.errMsg = MsgNoSelection
		c.logger.Info("selection rejected: no image")
		return ErrNoSelection
	}
	if mt := mimetype.Detect(image.Data); !strings.HasPrefix(mt.String(), "image/") {
		c.errMsg = MsgNotImage
		c.logger.Info("selection rejected: not an image",
			zap.String("filename", image.Filename),
			zap.String("content_type", mt.String()),
		)
		return ErrNotImage
	}

	handle, err := c.previews.Acquire(image)
	if err != nil {
		c.errMsg = MsgNoSelection
		c.logger.Error("failed to acquire preview", zap.Error(err))
		return fmt.Errorf("acquire preview: %w", err)
	}

	c.releaseLocked()
	c.selection = &selection{image: image, handle: handle}
	c.errMsg = ""
	c.logger.Info("image selected",
		zap.String("filename", image.Filename),
		zap.Int("size", len(image.Data)),
		zap.String("preview_id", handle.ID()),
	)
	return nil
}

// Cancel drops the selection, result and error. It does not abort a request
// already sent; that request's outcome will be discarded when it arrives.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.releaseLocked()
	c.result = nil
	c.errMsg = ""
	c.generation++
	c.logger.Info("selection cancelled", zap.Bool("in_flight", c.inFlight))
}

// Submit sends the selected image and waits for the outcome. It returns
// ErrNoSelection when nothing is selected and ErrInFlight while a previous
// submission is outstanding, without any network call in either case; every
// other outcome is reported through the returned State.
func (c *Controller) Submit(ctx context.Context) (State, error) {
	done, err := c.SubmitAsync(ctx)
	if err != nil {
		return c.State(), err
	}
	return <-done, nil
}

// SubmitAsync marks the controller in flight and issues the request in the
// background. The returned channel yields the state once the request has
// completed.
func (c *Controller) SubmitAsync(ctx context.Context) (<-chan State, error) {
	c.mu.Lock()
	if c.selection == nil {
		c.errMsg = MsgNoSelection
		c.mu.Unlock()
		c.logger.Info("submit rejected: no image selected")
		return nil, ErrNoSelection
	}
	if c.inFlight {
		c.mu.Unlock()
		c.logger.Info("submit rejected: submission already in flight")
		return nil, ErrInFlight
	}

	c.generation++
	gen := c.generation
	c.inFlight = true
	c.errMsg = ""
	image := c.selection.image
	c.mu.Unlock()

	requestID := uuid.NewString()
	logging.WithOperation(c.logger, "controller.submit", requestID).Info("submission started",
		zap.String("filename", image.Filename),
		zap.Int("size", len(image.Data)),
	)

	done := make(chan State, 1)
	go func() {
		resp, err := c.classify(ctx, requestID, image)
		done <- c.complete(gen, requestID, resp, err)
	}()
	return done, nil
}

// State returns a snapshot of the observable state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// CanSubmit reports whether a submission is currently allowed.
func (c *Controller) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection != nil && !c.inFlight
}

// Close releases the preview handle, if any.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
}

// classify converts a panicking client into a transport failure so that
// complete always runs.
func (c *Controller) classify(ctx context.Context, requestID string, image *classifier.Image) (resp *classifier.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = classifier.NewTransportError("controller.classify", requestID, 0, fmt.Errorf("panic: %v", r))
		}
	}()
	return c.client.Classify(ctx, requestID, image)
}

func (c *Controller) complete(gen uint64, requestID string, resp *classifier.Response, err error) State {
	opLogger := logging.WithOperation(c.logger, "controller.complete", requestID)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.inFlight = false
	if gen != c.generation {
		opLogger.Warn("discarding stale submission outcome", zap.Error(err))
		return c.snapshotLocked()
	}

	switch {
	case err != nil:
		c.result = nil
		c.errMsg = MsgUploadFailed
		opLogger.Error("submission failed", zap.Error(err))
	case resp.Detected():
		c.result = newResult(resp)
		c.errMsg = ""
		opLogger.Info("expression detected",
			zap.String("expression", resp.Expression),
			zap.Float64("accuracy", resp.Accuracy),
		)
	default:
		c.result = nil
		c.errMsg = MsgNotDetected
		if resp != nil && resp.Error != "" {
			c.errMsg = resp.Error
		}
		opLogger.Info("service reported no expression", zap.String("message", c.errMsg))
	}
	return c.snapshotLocked()
}

func (c *Controller) releaseLocked() {
	if c.selection == nil {
		return
	}
	if c.selection.handle != nil {
		c.selection.handle.Release()
	}
	c.selection = nil
}

func (c *Controller) snapshotLocked() State {
	s := State{
		HasSelection: c.selection != nil,
		InFlight:     c.inFlight,
		Result:       c.result,
		Error:        c.errMsg,
		CanSubmit:    c.selection != nil && !c.inFlight,
		Status:       deriveStatus(c.selection != nil, c.inFlight, c.result, c.errMsg),
	}
	if c.selection != nil {
		s.Filename = c.selection.image.Filename
		if c.selection.handle != nil {
			s.PreviewID = c.selection.handle.ID()
		}
	}
	return s
}
