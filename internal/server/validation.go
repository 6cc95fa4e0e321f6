package server

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	minNameLength    = 3
	maxNameLength    = 32
	maxCaptionLength = 100
	minAvatar        = 1
	maxAvatar        = 8
)

func validatePlayerName(name string) (string, error) {
	name = strings.TrimSpace(name)
	length := utf8.RuneCountInString(name)
	if length < minNameLength {
		return "", errors.New("name must be at least 3 characters")
	}
	if length > maxNameLength {
		return "", errors.New("name must be at most 32 characters")
	}
	return name, nil
}

func validateAvatar(avatar int) int {
	if avatar < minAvatar || avatar > maxAvatar {
		return minAvatar
	}
	return avatar
}

func validateCaption(caption string) (string, error) {
	caption = strings.TrimSpace(caption)
	if utf8.RuneCountInString(caption) > maxCaptionLength {
		return "", errors.New("caption must be at most 100 characters")
	}
	return caption, nil
}
