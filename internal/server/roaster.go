package server

import (
	"context"
	"errors"
	"time"
)

// The generation gateway runs the external calls off the round task's
// critical path: launch returns a channel immediately and the task joins it
// later, so stage latency is max(display, generation) rather than the sum.

type ideaGenerator func(ctx context.Context, photo PhotoEntry, count int, language string) ([]string, error)

type poemGenerator func(ctx context.Context, photo PhotoEntry, ideas []string, language string) (string, error)

type ideasResult struct {
	ideas []string
	err   error
}

func (s *Server) launchIdeaGeneration(ctx context.Context, photo PhotoEntry, count int) <-chan ideasResult {
	ch := make(chan ideasResult, 1)
	go func() {
		ideas, err := s.generateIdeas(ctx, photo, count, s.cfg.RoastLanguage)
		ch <- ideasResult{ideas: ideas, err: err}
	}()
	return ch
}

// awaitIdeas joins a launched generation with its own bound, independent of
// how long the task already slept.
func (s *Server) awaitIdeas(ctx context.Context, ch <-chan ideasResult, timeout time.Duration) ([]string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, errors.New("idea generation timed out")
	case result := <-ch:
		if result.err != nil {
			return nil, result.err
		}
		if len(result.ideas) == 0 {
			return nil, errors.New("idea generation returned nothing")
		}
		return result.ideas, nil
	}
}

// fallbackRoastIdeas keeps a round moving when the generation service is
// down. Deliberately generic so they fit any photo.
func fallbackRoastIdeas(count int) []string {
	lines := []string{
		"The camera added ten pounds of regret.",
		"This photo is the reason autofocus gave up.",
		"Even the background is trying to leave.",
		"A rare shot of confidence outrunning ability.",
		"Proof that timing is everything, and this had none.",
		"The flash did all it could. It was not enough.",
		"Somewhere a stock photo is feeling better about itself.",
		"This is what happens when 'one more take' loses the vote.",
	}
	if count < len(lines) {
		return lines[:count]
	}
	return lines
}
