package smtp

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sale-monitor/internal/monitor"
)

type captured struct {
	mu   sync.Mutex
	from string
	to   []string
	data []byte
}

type backend struct{ c *captured }

func (b *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{c: b.c}, nil
}

type session struct{ c *captured }

func (s *session) Reset()        {}
func (s *session) Logout() error { return nil }

func (s *session) AuthPlain(_, _ string) error { return smtp.ErrAuthUnsupported }

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.c.mu.Lock()
	s.c.from = from
	s.c.mu.Unlock()
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.c.mu.Lock()
	s.c.to = append(s.c.to, to)
	s.c.mu.Unlock()
	return nil
}

func (s *session) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.c.mu.Lock()
	s.c.data = data
	s.c.mu.Unlock()
	return nil
}

func startServer(t *testing.T) (*captured, string, int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	c := &captured{}
	srv := smtp.NewServer(&backend{c: c})
	srv.Domain = "localhost"
	srv.ReadTimeout = 5 * time.Second
	srv.WriteTimeout = 5 * time.Second
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return c, host, port
}

func sampleMessage() monitor.EmailMessage {
	shot := monitor.Screenshot{Data: []byte("fake-jpeg-bytes"), ContentType: "image/jpeg"}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return monitor.BuildEmail("monitor@example.com", "me@example.com", "https://www.dwr.com",
		monitor.Classification{Description: "None found", HasSale: false}, shot, now)
}

func TestSendDeliversMultipartMessage(t *testing.T) {
	t.Parallel()

	got, host, port := startServer(t)
	c := New(Config{Host: host, Port: port, TLS: TLSNone, Timeout: 5 * time.Second}, nil)
	require.NoError(t, c.Send(context.Background(), sampleMessage()))

	got.mu.Lock()
	defer got.mu.Unlock()
	require.Equal(t, "monitor@example.com", got.from)
	require.Equal(t, []string{"me@example.com"}, got.to)

	parsed, err := mail.ReadMessage(strings.NewReader(string(got.data)))
	require.NoError(t, err)
	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	require.Equal(t, monitor.SubjectNoSale, subject)

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	text, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(text)
	require.NoError(t, err)
	normalized := strings.ReplaceAll(string(body), "\r\n", "\n")
	require.Contains(t, normalized, "Website: https://www.dwr.com\nAnalysis: None found")

	att, err := mr.NextPart()
	require.NoError(t, err)
	require.Equal(t, "screenshot.jpg", att.FileName())
	require.Equal(t, "image/jpeg", att.Header.Get("Content-Type"))
	encoded, err := io.ReadAll(att)
	require.NoError(t, err)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
	require.NoError(t, err)
	require.Equal(t, "fake-jpeg-bytes", string(decoded))
}

func TestSendValidatesConfig(t *testing.T) {
	t.Parallel()

	err := New(Config{}, nil).Send(context.Background(), sampleMessage())
	require.True(t, errors.Is(err, ErrMissingHost))

	msg := sampleMessage()
	msg.To = ""
	err = New(Config{Host: "smtp.example.com"}, nil).Send(context.Background(), msg)
	require.ErrorContains(t, err, "recipient")

	err = New(Config{Host: "127.0.0.1", TLS: "ssl3"}, nil).Send(context.Background(), sampleMessage())
	require.ErrorContains(t, err, "unsupported smtp tls mode")
}

func TestSendConnectionRefused(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	err = New(Config{Host: "127.0.0.1", Port: port, TLS: TLSNone, Timeout: time.Second}, nil).Send(context.Background(), sampleMessage())
	require.ErrorContains(t, err, "failed to connect")
}

func TestWrapLines(t *testing.T) {
	t.Parallel()

	require.Equal(t, "abcd\r\nefgh\r\nij", wrapLines("abcdefghij", 4))
	require.Equal(t, "abc", wrapLines("abc", 4))
}
