package services

import "furniplan/internal/models"

// Допустимые переходы статусов чата: архив односторонний.
var ChatTransitions = map[models.ChatStatus]map[models.ChatStatus]bool{
	models.ChatStatusActive:   {models.ChatStatusActive: true, models.ChatStatusArchived: true},
	models.ChatStatusArchived: {models.ChatStatusArchived: true},
}

func canTransition(current, to models.ChatStatus) bool {
	nexts, ok := ChatTransitions[current]
	if !ok {
		return false
	}
	return nexts[to]
}
