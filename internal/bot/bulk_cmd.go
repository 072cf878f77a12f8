package bot

import (
	"context"
	"fmt"
	"strings"

	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maxaizer/jobboard-core/internal/domain/models"
	"github.com/maxaizer/jobboard-core/internal/services"
)

const bulkCommandName = "bulk"

type bulkCommand struct {
	api            apiInterface
	chatID         int64
	actor          models.Actor
	executor       transitionExecutor
	input          inputHandler
	finishCallback func()
}

func newBulkCommand(api apiInterface, chatID int64, actor models.Actor, executor transitionExecutor) *bulkCommand {
	cmd := &bulkCommand{
		api:      api,
		chatID:   chatID,
		actor:    actor,
		executor: executor,
	}
	cmd.input = newBulkItemsInput(chatID, cmd.apply)
	return cmd
}

func (c *bulkCommand) WithFinishCallback(callback func()) {
	c.finishCallback = callback
}

func (c *bulkCommand) Run() {
	_, _ = sendWithLogError(c.api, c.input.InitMessage())
}

func (c *bulkCommand) OnUserInput(input string) {
	if msg := c.input.HandleInput(input); msg != nil {
		_, _ = sendWithLogError(c.api, msg)
	}
}

func (c *bulkCommand) apply(items []services.BulkItem) {
	result := c.executor.ApplyBulk(context.Background(), c.actor, items)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Applied: %d, skipped: %d", len(result.Applied), len(result.Skipped)))
	for _, skipped := range result.Skipped {
		sb.WriteString(fmt.Sprintf("\n%s: %s", skipped.Ref, describeError(skipped.Err)))
	}
	_, _ = sendWithLogError(c.api, botApi.NewMessage(c.chatID, sb.String()))

	if c.finishCallback != nil {
		c.finishCallback()
	}
}
