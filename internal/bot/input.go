package bot

import (
	"fmt"
	"strconv"
	"strings"

	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/maxaizer/jobboard-core/internal/domain/registry"
	"github.com/maxaizer/jobboard-core/internal/services"
)

type inputHandler interface {
	InitMessage() botApi.Chattable
	HandleInput(input string) botApi.Chattable
}

// parseTransition parses "<kind> <id> <status>".
func parseTransition(line string) (services.BulkItem, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return services.BulkItem{}, fmt.Errorf("expected \"<kind> <id> <status>\", got %q", line)
	}

	kind, err := registry.ParseKind(fields[0])
	if err != nil {
		return services.BulkItem{}, err
	}
	id, err := parseID(fields[1])
	if err != nil {
		return services.BulkItem{}, err
	}
	status, err := registry.ParseStatus(kind, fields[2])
	if err != nil {
		return services.BulkItem{}, err
	}
	return services.BulkItem{Ref: models.EntityRef{Kind: kind, ID: id}, Status: status}, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%q is not a valid id", raw)
	}
	return id, nil
}

// bulkItemsInput collects transitions, one per line, until the user sends
// the finish word, then hands them to onDone.
type bulkItemsInput struct {
	chatID int64
	items  []services.BulkItem
	onDone func(items []services.BulkItem)
}

const bulkFinishInput = "done"

func newBulkItemsInput(chatID int64, onDone func(items []services.BulkItem)) *bulkItemsInput {
	return &bulkItemsInput{chatID: chatID, onDone: onDone}
}

func (b *bulkItemsInput) InitMessage() botApi.Chattable {
	return botApi.NewMessage(b.chatID, fmt.Sprintf(
		"Send transitions as \"<kind> <id> <status>\", one per line. Send \"%s\" to apply them or /cancel.",
		bulkFinishInput))
}

func (b *bulkItemsInput) HandleInput(input string) botApi.Chattable {
	if strings.EqualFold(strings.TrimSpace(input), bulkFinishInput) {
		if len(b.items) == 0 {
			return botApi.NewMessage(b.chatID, "Nothing to apply yet.")
		}
		b.onDone(b.items)
		return nil
	}

	var problems []string
	for _, line := range strings.Split(input, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		item, err := parseTransition(line)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		b.items = append(b.items, item)
	}

	text := fmt.Sprintf("%d transitions queued.", len(b.items))
	if len(problems) > 0 {
		text += "\nIgnored:\n" + strings.Join(problems, "\n")
	}
	return botApi.NewMessage(b.chatID, text)
}
