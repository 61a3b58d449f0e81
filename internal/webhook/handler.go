// Package webhook receives WhatsApp Cloud API callbacks and feeds them
// into the transport event stream.
package webhook

import (
	"net/http"
	"strconv"
	"time"

	"studio-messaging/internal/cloudapi"
	"studio-messaging/internal/config"
	"studio-messaging/internal/models"
	"studio-messaging/internal/transport"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Payload is the incoming JSON callback from the Cloud API.
type Payload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Value struct {
				MessagingProduct string `json:"messaging_product"`
				Metadata         struct {
					DisplayPhoneNumber string `json:"display_phone_number"`
					PhoneNumberID      string `json:"phone_number_id"`
				} `json:"metadata"`
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts,omitempty"`
				Messages []inboundMessage `json:"messages,omitempty"`
				Statuses []struct {
					ID          string `json:"id"`
					Status      string `json:"status"`
					Timestamp   string `json:"timestamp"`
					RecipientID string `json:"recipient_id"`
				} `json:"statuses,omitempty"`
			} `json:"value"`
			Field string `json:"field"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Image    *mediaAttachment `json:"image,omitempty"`
	Video    *mediaAttachment `json:"video,omitempty"`
	Audio    *mediaAttachment `json:"audio,omitempty"`
	Document *mediaAttachment `json:"document,omitempty"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location,omitempty"`
}

type mediaAttachment struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type Handler struct {
	cfg       *config.Config
	transport *cloudapi.Transport
	log       *zap.Logger
}

func NewHandler(cfg *config.Config, tp *cloudapi.Transport, log *zap.Logger) *Handler {
	return &Handler{cfg: cfg, transport: tp, log: log}
}

// Verify answers the Cloud API subscription handshake.
func (h *Handler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "" || token == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	if mode == "subscribe" && token == h.cfg.VerifyToken {
		h.log.Info("webhook verified")
		c.String(http.StatusOK, challenge)
		return
	}
	c.Status(http.StatusForbidden)
}

// Receive translates callback entries into transport events. The
// endpoint always answers 200 for well-formed payloads; processing
// happens downstream on the gateway loop.
func (h *Handler) Receive(c *gin.Context) {
	var payload Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.log.Warn("malformed webhook payload", zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			value := change.Value

			names := make(map[string]string, len(value.Contacts))
			for _, contact := range value.Contacts {
				names[contact.WaID] = contact.Profile.Name
			}

			for _, msg := range value.Messages {
				h.transport.HandleInbound(transport.Inbound{
					ExternalID: msg.ID,
					From:       msg.From,
					To:         value.Metadata.DisplayPhoneNumber,
					Body:       messageContent(msg),
					MediaType:  mediaType(msg.Type),
					Timestamp:  parseTimestamp(msg.Timestamp),
					Metadata:   inboundMetadata(names[msg.From]),
				})
			}

			for _, status := range value.Statuses {
				h.transport.HandleStatus(status.ID, status.Status)
			}
		}
	}

	c.Status(http.StatusOK)
}

// messageContent flattens an inbound message into a text body. Media
// messages keep a reference to the attachment id.
func messageContent(msg inboundMessage) string {
	switch msg.Type {
	case "text":
		return msg.Text.Body
	case "image":
		return attachmentContent("image", msg.Image)
	case "video":
		return attachmentContent("video", msg.Video)
	case "audio":
		return attachmentContent("audio", msg.Audio)
	case "document":
		return attachmentContent("document", msg.Document)
	case "location":
		if msg.Location != nil {
			return "[location]:" +
				strconv.FormatFloat(msg.Location.Latitude, 'f', 6, 64) + "," +
				strconv.FormatFloat(msg.Location.Longitude, 'f', 6, 64)
		}
	}
	return "[" + msg.Type + "]"
}

func attachmentContent(kind string, media *mediaAttachment) string {
	if media == nil {
		return "[" + kind + "]"
	}
	content := "[" + kind + "]:" + media.ID
	if media.Caption != "" {
		content += ":" + media.Caption
	}
	if media.Filename != "" {
		content += ":" + media.Filename
	}
	return content
}

func mediaType(apiType string) string {
	switch apiType {
	case "text":
		return models.MediaText
	case "image":
		return models.MediaImage
	case "video":
		return models.MediaVideo
	case "audio":
		return models.MediaAudio
	case "document":
		return models.MediaDocument
	case "location":
		return models.MediaLocation
	}
	return models.MediaText
}

func parseTimestamp(raw string) time.Time {
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0)
	}
	return time.Now()
}

func inboundMetadata(contactName string) map[string]string {
	if contactName == "" {
		return nil
	}
	return map[string]string{"contact_name": contactName}
}
