// Package roomid makes memorable room ids like "cozy-otter-nacho-comet".
package roomid

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	// Words per id, each from a different list.
	Words = 4

	// MaxAttempts bounds Reserve.
	MaxAttempts = 5
)

// ErrExhausted is returned when every generated id was taken.
var ErrExhausted = errors.New("could not find a free room id")

// Generate returns a random id of Words words drawn from distinct lists.
func Generate() (string, error) {
	lists, err := pickLists(Words)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, Words)
	for _, list := range lists {
		i, err := randomIndex(len(list))
		if err != nil {
			return "", err
		}
		parts = append(parts, list[i])
	}
	return strings.Join(parts, "-"), nil
}

// Reserve generates ids until taken reports one as free.
func Reserve(ctx context.Context, taken func(ctx context.Context, id string) (bool, error)) (string, error) {
	for range MaxAttempts {
		id, err := Generate()
		if err != nil {
			return "", err
		}
		busy, err := taken(ctx, id)
		if err != nil {
			return "", fmt.Errorf("check room %s: %w", id, err)
		}
		if !busy {
			return id, nil
		}
	}
	return "", ErrExhausted
}

// pickLists chooses n distinct word lists with a partial Fisher-Yates shuffle.
func pickLists(n int) ([][]string, error) {
	pool := make([][]string, len(wordLists))
	copy(pool, wordLists)
	for i := 0; i < n; i++ {
		j, err := randomIndex(len(pool) - i)
		if err != nil {
			return nil, err
		}
		pool[i], pool[i+j] = pool[i+j], pool[i]
	}
	return pool[:n], nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("random index: %w", err)
	}
	return int(v.Int64()), nil
}
