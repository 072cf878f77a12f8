package bot

import "github.com/maxaizer/jobboard-core/internal/domain/models"

type userContext struct {
	chatID     int64
	actor      models.Actor
	curCommand command
}

func newUserContext(chatID int64, actor models.Actor) *userContext {
	return &userContext{chatID: chatID, actor: actor}
}

func (u *userContext) RunCommand(command command) {
	u.curCommand = command
	u.curCommand.WithFinishCallback(func() {
		u.curCommand = nil
	})
	u.curCommand.Run()
}

func (u *userContext) HasRunningCommand() bool {
	return u.curCommand != nil
}

func (u *userContext) OnUserInput(input string) {
	u.curCommand.OnUserInput(input)
}
