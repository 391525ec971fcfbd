package ingestion

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailHandler fetches CV attachments from a Gmail inbox
type GmailHandler struct {
	service  *gmail.Service
	maxBytes int64
	log      *zap.Logger
}

// GmailOptions configures the OAuth flow of NewGmailHandler
type GmailOptions struct {
	CredentialsFile string
	TokenFile       string
	MaxEntryBytes   int64
	// In and Out drive the first-run authorization prompt
	In  io.Reader
	Out io.Writer
}

// NewGmailHandler creates a new Gmail handler
func NewGmailHandler(ctx context.Context, opts GmailOptions, log *zap.Logger) (*GmailHandler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stderr
	}

	b, err := os.ReadFile(opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	client, err := getClient(ctx, config, opts)
	if err != nil {
		return nil, err
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail client: %w", err)
	}

	return &GmailHandler{
		service:  srv,
		maxBytes: opts.MaxEntryBytes,
		log:      log,
	}, nil
}

// getClient retrieves a cached token or runs the authorization prompt
func getClient(ctx context.Context, config *oauth2.Config, opts GmailOptions) (*http.Client, error) {
	tok, err := tokenFromFile(opts.TokenFile)
	if err != nil {
		tok, err = getTokenFromWeb(ctx, config, opts.In, opts.Out)
		if err != nil {
			return nil, err
		}
		if err := saveToken(opts.TokenFile, tok); err != nil {
			return nil, err
		}
	}
	return config.Client(ctx, tok), nil
}

// getTokenFromWeb requests a token from the web
func getTokenFromWeb(ctx context.Context, config *oauth2.Config, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(out, "Go to the following link in your browser then type the authorization code: \n%v\n", authURL)

	var authCode string
	if _, err := fmt.Fscan(in, &authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}

	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}

// tokenFromFile retrieves a token from a local file
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// saveToken saves a token to a file path
func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	return nil
}

// FetchBundle collects the PDF attachments of messages with the given subject.
// The entries follow the same rules as an uploaded bundle.
func (gh *GmailHandler) FetchBundle(ctx context.Context, subject string) ([]Entry, []Extraction, error) {
	user := "me"
	query := fmt.Sprintf("subject:%s has:attachment", subject)

	r, err := gh.service.Users.Messages.List(user).Q(query).Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("unable to retrieve messages: %w", err)
	}

	if len(r.Messages) == 0 {
		return nil, nil, fmt.Errorf("no messages found with subject: %s", subject)
	}

	var entries []Entry
	var skipped []Extraction

	for _, msg := range r.Messages {
		message, err := gh.service.Users.Messages.Get(user, msg.Id).Context(ctx).Do()
		if err != nil {
			gh.log.Warn("unable to retrieve message", zap.String("message", msg.Id), zap.Error(err))
			continue
		}

		senderName := extractSenderName(message)

		for _, part := range attachmentParts(message.Payload) {
			name := attachmentName(senderName, part.Filename)
			if !IsDocumentName(name) {
				continue
			}

			if gh.maxBytes > 0 && part.Body.Size > gh.maxBytes {
				skipped = append(skipped, skip(name, fmt.Sprintf("entry exceeds %d bytes", gh.maxBytes)))
				continue
			}

			attachment, err := gh.service.Users.Messages.Attachments.Get(user, msg.Id, part.Body.AttachmentId).Context(ctx).Do()
			if err != nil {
				gh.log.Warn("skipping bundle entry", zap.String("entry", name), zap.String("reason", err.Error()))
				skipped = append(skipped, skip(name, "unable to retrieve attachment"))
				continue
			}

			data, err := decodeAttachment(attachment.Data)
			if err != nil {
				gh.log.Warn("skipping bundle entry", zap.String("entry", name), zap.String("reason", err.Error()))
				skipped = append(skipped, skip(name, "unable to decode attachment"))
				continue
			}

			entries = append(entries, Entry{Name: name, Data: data})
			gh.log.Info("attachment downloaded", zap.String("entry", name))
		}
	}

	return entries, skipped, nil
}

// attachmentParts walks nested multipart payloads
func attachmentParts(part *gmail.MessagePart) []*gmail.MessagePart {
	if part == nil {
		return nil
	}
	var parts []*gmail.MessagePart
	if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
		parts = append(parts, part)
	}
	for _, child := range part.Parts {
		parts = append(parts, attachmentParts(child)...)
	}
	return parts
}

// attachmentName prefixes the attachment with its sender so that identical
// file names from different applicants stay apart
func attachmentName(sender, filename string) string {
	base := filepath.Base(filename)
	if sender == "" || sender == "Unknown" {
		return base
	}
	return sender + "_" + base
}

// decodeAttachment accepts padded and unpadded URL-safe base64
func decodeAttachment(data string) ([]byte, error) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return decoded, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}

// extractSenderName extracts the sender's name from email headers
func extractSenderName(message *gmail.Message) string {
	if message.Payload == nil {
		return "Unknown"
	}
	for _, header := range message.Payload.Headers {
		if header.Name == "From" {
			// Parse "Name <email@example.com>" format
			from := header.Value
			if idx := strings.Index(from, "<"); idx > 0 {
				name := strings.TrimSpace(from[:idx])
				name = strings.Trim(name, `"`)
				name = strings.ReplaceAll(name, " ", "")
				return name
			}
			// If no name, use email prefix
			if idx := strings.Index(from, "@"); idx > 0 {
				return from[:idx]
			}
			return "Unknown"
		}
	}
	return "Unknown"
}
