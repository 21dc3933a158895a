package browser

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/pledgescope/models"
	"github.com/ysmood/gson"
)

// bodyFetcher returns the raw body of a finished response.
type bodyFetcher func(id proto.NetworkRequestID) (body string, base64Encoded bool, err error)

// observed is one JSON response seen on the wire.
type observed struct {
	id       proto.NetworkRequestID
	url      string
	finished bool

	// fetched is set once the body was read, successfully or not.
	fetched bool
	parsed  *models.CapturedResponse
}

// Capture records the JSON responses a page receives, in the order their
// headers arrived. Bodies are only read when Responses is called.
type Capture struct {
	fetch bodyFetcher
	stop  func()

	mu    sync.Mutex
	byID  map[proto.NetworkRequestID]*observed
	order []*observed
}

func newCapture(fetch bodyFetcher) *Capture {
	return &Capture{
		fetch: fetch,
		stop:  func() {},
		byID:  make(map[proto.NetworkRequestID]*observed),
	}
}

// StartCapture subscribes to the page's network events. It must be called
// before Navigate to see the responses triggered by the initial load.
func (s *Session) StartCapture() *Capture {
	page := s.page
	c := newCapture(func(id proto.NetworkRequestID) (string, bool, error) {
		res, err := proto.NetworkGetResponseBody{RequestID: id}.Call(page.Context(s.ctx))
		if err != nil {
			return "", false, err
		}
		return res.Body, res.Base64Encoded, nil
	})

	// Enable the domain synchronously so no response slips past before the
	// listener goroutine is scheduled.
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		slog.Warn("failed to enable network events", "error", err)
	}

	ctx, cancel := context.WithCancel(s.eventsCtx)
	wait := page.Context(ctx).EachEvent(
		func(e *proto.NetworkResponseReceived) {
			c.observeResponse(e.RequestID, e.Response.URL, e.Response.MIMEType)
		},
		func(e *proto.NetworkLoadingFinished) {
			c.observeFinished(e.RequestID)
		},
	)
	go wait()
	c.stop = cancel
	return c
}

// Stop ends the subscription. Responses already observed stay readable.
func (c *Capture) Stop() {
	c.stop()
}

func (c *Capture) observeResponse(id proto.NetworkRequestID, url, mimeType string) {
	if !isJSON(mimeType) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byID[id]; ok {
		return
	}
	o := &observed{id: id, url: url}
	c.byID[id] = o
	c.order = append(c.order, o)
}

func (c *Capture) observeFinished(id proto.NetworkRequestID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o, ok := c.byID[id]; ok {
		o.finished = true
	}
}

// Responses returns the parsed JSON bodies of every finished response, in
// observation order. Bodies that cannot be read or parsed are skipped.
func (c *Capture) Responses() []models.CapturedResponse {
	c.mu.Lock()
	pending := make([]*observed, 0, len(c.order))
	for _, o := range c.order {
		if o.finished {
			pending = append(pending, o)
		}
	}
	c.mu.Unlock()

	out := make([]models.CapturedResponse, 0, len(pending))
	for _, o := range pending {
		if !o.fetched {
			o.fetched = true
			resp, err := c.read(o)
			if err != nil {
				slog.Debug("skipping captured response", "url", o.url, "error", err)
				continue
			}
			o.parsed = resp
		}
		if o.parsed != nil {
			out = append(out, *o.parsed)
		}
	}
	return out
}

func (c *Capture) read(o *observed) (*models.CapturedResponse, error) {
	body, b64, err := c.fetch(o.id)
	if err != nil {
		return nil, fmt.Errorf("get body: %w", err)
	}
	raw := []byte(body)
	if b64 {
		raw, err = base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
	}
	v, err := parseJSON(raw)
	if err != nil {
		return nil, err
	}
	slog.Debug("captured json response", "url", o.url, "bytes", len(raw), "snippet", snippet(raw, snippetBytes))
	return &models.CapturedResponse{URL: o.url, Body: gson.New(v)}, nil
}

// parseJSON decodes one JSON document, keeping numbers as json.Number so
// large identifiers survive.
func parseJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse body: %w", err)
	}
	return v, nil
}

// snippetBytes caps the payload excerpt logged for each captured response.
const snippetBytes = 200

// snippet collapses whitespace in raw and cuts it to at most n bytes on a
// rune boundary.
func snippet(raw []byte, n int) string {
	s := strings.Join(strings.Fields(string(raw)), " ")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func isJSON(mimeType string) bool {
	return strings.Contains(strings.ToLower(mimeType), "json")
}
