package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"

	"github.com/autobrr/prunetree/pkg/config"
	"github.com/autobrr/prunetree/pkg/httputils"
)

const (
	maxEmbedsPerMessage = 10
	maxCharactersPerMsg = 6000

	// hardcoded limit of fields to avoid hammering the api
	maxTotalFields = 250
)

type DiscordMessage struct {
	Content interface{}    `json:"content"`
	Embeds  []DiscordEmbed `json:"embeds,omitempty"`
}

type DiscordEmbed struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Color       int                  `json:"color"`
	Fields      []DiscordEmbedsField `json:"fields,omitempty"`
	Footer      DiscordEmbedsFooter  `json:"footer,omitempty"`
	Timestamp   time.Time            `json:"timestamp"`
}

type DiscordEmbedsFooter struct {
	Text string `json:"text"`
}

type DiscordEmbedsField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedColors int

const (
	LIGHT_BLUE EmbedColors = 0x58b9ff
	RED        EmbedColors = 0xed4245
	GREEN      EmbedColors = 0x57f287
	GRAY       EmbedColors = 0x99aab5
)

type discordSender struct {
	log    *logrus.Entry
	config config.NotificationsConfig

	httpClient *http.Client
}

func (d *discordSender) Name() string {
	return "discord"
}

func NewDiscordSender(log *logrus.Entry, config config.NotificationsConfig) Sender {
	log = log.WithField("sender", "discord")

	return &discordSender{
		log:        log,
		config:     config,
		httpClient: httputils.NewRetryableHttpClient(30*time.Second, ratelimit.New(1, ratelimit.WithoutSlack), log),
	}
}

// Calculate the actual JSON size of an embed
func (d *discordSender) calculateEmbedSize(embed DiscordEmbed) (int, error) {
	jsonData, err := json.Marshal(embed)
	if err != nil {
		return 0, err
	}
	return len(jsonData), nil
}

func (d *discordSender) Send(ctx context.Context, title string, description string, runTime time.Duration, fields []Field, dryRun bool) error {
	var (
		allEmbeds   []DiscordEmbed
		totalFields = len(fields)
		timestamp   = time.Now()

		batches      [][]DiscordEmbed
		currentBatch []DiscordEmbed
		currentChars int
	)

	if dryRun {
		title = title + " (Dry Run)"
	}

	// nothing happened on any root
	if totalFields == 0 && d.config.SkipEmptyRun {
		d.log.Debug("Skipping notification for empty run")
		return nil
	}

	rt := runTime.Truncate(time.Millisecond).String()

	// only send a summary embed if no fields are present, there are more fields than allowed,
	// or the config setting "detailed" is set to false
	if totalFields == 0 || totalFields > maxTotalFields || !d.config.Detailed {
		allEmbeds = append(allEmbeds, DiscordEmbed{
			Title:       title,
			Description: description,
			Color:       int(LIGHT_BLUE),
			Footer: DiscordEmbedsFooter{
				Text: d.buildFooter(0, totalFields, rt),
			},
			Timestamp: timestamp,
		})
	} else {
		// one embed per root
		for i, field := range fields {
			embed := DiscordEmbed{
				Title:  title,
				Color:  int(GREEN),
				Fields: d.parseFieldValueToInlineFields(field.Value),
				Footer: DiscordEmbedsFooter{
					Text: d.buildFooter(i+1, totalFields, rt),
				},
				Timestamp: timestamp,
			}

			if field.Name != "" {
				embed.Description = fmt.Sprintf("**%s**", field.Name)
			}

			for _, f := range embed.Fields {
				if f.Name == "Error" {
					embed.Color = int(RED)
				}
			}

			allEmbeds = append(allEmbeds, embed)
		}
		allEmbeds = append(allEmbeds, DiscordEmbed{
			Title:       fmt.Sprintf("%s - Summary", title),
			Description: description,
			Color:       int(LIGHT_BLUE),
			Footer: DiscordEmbedsFooter{
				Text: d.buildFooter(0, 0, rt),
			},
			Timestamp: timestamp,
		})
	}

	// Batch embeds for messages (max 10 embeds per message)
	flush := func() {
		if len(currentBatch) == 0 {
			return
		}
		batches = append(batches, currentBatch)
		currentBatch = nil
		currentChars = 0
	}

	for _, e := range allEmbeds {
		eSize, err := d.calculateEmbedSize(e)
		if err != nil {
			return errors.Wrap(err, "failed to calculate embed size for batching")
		}

		// If adding this embed breaks either the embed-count or char limit, flush first
		if len(currentBatch) >= maxEmbedsPerMessage || currentChars+eSize > maxCharactersPerMsg {
			flush()
		}

		currentBatch = append(currentBatch, e)
		currentChars += eSize
	}
	flush()

	totalMsgs := len(batches)

	for i, batch := range batches {
		msg := DiscordMessage{
			Content: nil,
			Embeds:  batch,
		}

		if err := httputils.MakeAPIRequest(ctx, d.httpClient, http.MethodPost, d.config.Service.Discord, msg, nil, nil); err != nil {
			return errors.Wrapf(err, "failed to send message %d/%d to Discord", i+1, totalMsgs)
		}

		d.log.Debugf("Sent Discord message %d/%d (%d embeds).", i+1, totalMsgs, len(batch))
	}

	d.log.Debugf("All %d Discord messages sent successfully.", totalMsgs)
	return nil
}

func (d *discordSender) CanSend() bool {
	return d.config.Service.Discord != ""
}

// BuildField constructs a Field based on the provided action and build options.
func (d *discordSender) BuildField(action Action, opt BuildOptions) Field {
	switch action {
	case ActionPrune:
		return d.buildPruneField(opt)
	case ActionRecover:
		return d.buildRecoverField(opt)
	}

	return Field{}
}

func (d *discordSender) buildPruneField(opt BuildOptions) Field {
	s := opt.Summary

	savedName := "Saved"
	if s.DryRun {
		savedName = "Would Save"
	}

	inlineFields := []DiscordEmbedsField{
		{Name: "Files", Value: strconv.Itoa(s.Scan.Total()), Inline: true},
		{Name: "Candidates", Value: strconv.Itoa(s.Scan.Found), Inline: true},
		{Name: "Linked", Value: strconv.Itoa(s.Merge.Linked), Inline: true},
		{Name: savedName, Value: humanize.IBytes(uint64(s.Merge.Saved)), Inline: true},
		{Name: "Already Saved", Value: humanize.IBytes(uint64(s.Scan.AlreadySaved)), Inline: true},
		{Name: "Took", Value: s.Duration.Truncate(time.Millisecond).String(), Inline: true},
	}

	failed := s.Merge.Failed + s.Merge.Vanished + s.Merge.Changed + s.Merge.Abandoned + s.Digests.Failed
	if failed > 0 {
		inlineFields = append(inlineFields, DiscordEmbedsField{
			Name:   "Skipped",
			Value:  strconv.Itoa(failed),
			Inline: true,
		})
	}

	if len(s.Merge.Artifacts) > 0 {
		inlineFields = append(inlineFields, DiscordEmbedsField{
			Name:   "Relink Temporaries",
			Value:  strconv.Itoa(len(s.Merge.Artifacts)),
			Inline: false,
		})
	}

	if opt.Err != nil {
		inlineFields = append(inlineFields, DiscordEmbedsField{
			Name:   "Error",
			Value:  opt.Err.Error(),
			Inline: false,
		})
	}

	// Serialize to JSON to store in the field value
	jsonData, _ := json.Marshal(inlineFields)

	return Field{
		Name:  opt.Root,
		Value: string(jsonData),
	}
}

func (d *discordSender) buildRecoverField(opt BuildOptions) Field {
	r := opt.Recovery

	inlineFields := []DiscordEmbedsField{
		{Name: "Restored", Value: strconv.Itoa(r.Restored), Inline: true},
		{Name: "Removed", Value: strconv.Itoa(r.Removed), Inline: true},
		{Name: "Kept", Value: strconv.Itoa(r.Kept), Inline: true},
	}

	if opt.Err != nil {
		inlineFields = append(inlineFields, DiscordEmbedsField{
			Name:   "Error",
			Value:  opt.Err.Error(),
			Inline: false,
		})
	}

	jsonData, _ := json.Marshal(inlineFields)

	return Field{
		Name:  opt.Root,
		Value: string(jsonData),
	}
}

func (d *discordSender) parseFieldValueToInlineFields(value string) []DiscordEmbedsField {
	var fields []DiscordEmbedsField

	if err := json.Unmarshal([]byte(value), &fields); err != nil {
		d.log.WithError(err).Error("Failed to parse field value as JSON")
		return []DiscordEmbedsField{}
	}

	return fields
}

func (d *discordSender) buildFooter(progress int, totalFields int, runTime string) string {
	if totalFields == 0 {
		return fmt.Sprintf("Started: %s ago", runTime)
	}

	return fmt.Sprintf("Progress: %d/%d | Started: %s ago", progress, totalFields, runTime)
}
