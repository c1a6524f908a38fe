package chat

import (
	"fmt"
	"time"

	"github.com/suPer8Hu/persona-chat/internal/persona"
)

func instructorOpener(studentName, instructorName string) string {
	return fmt.Sprintf("Hi %s, I'm %s, your instructor. I would like to chat with you.",
		persona.FirstName(studentName), instructorName)
}

func personaOpener(studentName, org string) string {
	return fmt.Sprintf("Hi, I'm %s from %s. What would you like to know about me?",
		persona.FirstName(studentName), org)
}

// seedMessages builds the fixed opening exchange.
func seedMessages(globalSessionID, studentName, instructorName, org string, now time.Time) []Message {
	userAt, assistantAt := nextTurnTimes(now, "")
	return []Message{
		{
			GlobalSessionID:  globalSessionID,
			MessageTimestamp: Stamp(userAt, RoleUser),
			Role:             RoleUser,
			Text:             instructorOpener(studentName, instructorName),
			InputSource:      string(SourceSystem),
			CreatedAt:        userAt,
		},
		{
			GlobalSessionID:  globalSessionID,
			MessageTimestamp: Stamp(assistantAt, RoleAssistant),
			Role:             RoleAssistant,
			Text:             personaOpener(studentName, org),
			InputSource:      string(SourceSeed),
			CreatedAt:        assistantAt,
		},
	}
}
