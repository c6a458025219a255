// ABOUTME: Transcript chunking and chunked summary merging
// ABOUTME: Greedy word-bounded chunks kept inside the chat prompt budget
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cevr/bible-tools/internal/llm"
)

// Chatter is the chat-completion dependency of the summarizer.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

// ChunkTranscript splits text into word-bounded chunks whose byte length
// stays within budget. Accumulation is greedy: a chunk closes when adding
// the next word would exceed the budget, so words are never split and a
// single oversized word still gets its own chunk. Joining the chunks' words
// reconstructs the original word sequence.
func ChunkTranscript(text string, budget int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	size := 0

	for _, word := range words {
		if len(current) > 0 && size+len(word)+1 > budget {
			chunks = append(chunks, strings.Join(current, " "))
			current = current[:0]
			size = 0
		}
		current = append(current, word)
		size += len(word) + 1
	}
	chunks = append(chunks, strings.Join(current, " "))

	return chunks
}

const summaryPrompt = `You are a study helper. You will be given a transcript of audio for an educational video. Your task is to summarize the transcript, provide all the key points, and a study guide for the video.
Be aware that the transcript may contain errors. If you notice any errors, please correct them.

Requirements:
- Provide a summary of the video
- Provide a list of key points for the video
- Provide a study guide for the video
- Provide a list of questions for the video`

const chunkPrompt = `You are a study helper. You will be given one part of a longer transcript of audio for an educational video. Summarize this part on its own: a short summary, the key points, and any notable questions it raises.
Be aware that the transcript may contain errors. If you notice any errors, please correct them. Do not invent content for the parts you have not seen.`

const mergePrompt = `You are a study helper. You will be given several partial summaries of one educational video, in order. Merge them into a single coherent result in plain language.

Requirements:
- Provide a summary of the video
- Provide a list of key points for the video
- Provide a study guide for the video
- Provide a list of questions for the video`

// Summarizer turns a long transcript into one coherent summary, chunking
// when the transcript exceeds the prompt budget.
type Summarizer struct {
	chat        Chatter
	byteBudget  int
	concurrency int
}

// NewSummarizer creates a Summarizer. budget is the per-chunk byte budget;
// concurrency caps parallel per-chunk summary calls.
func NewSummarizer(chat Chatter, budget, concurrency int) *Summarizer {
	if budget <= 0 {
		budget = llm.DefaultMaxPromptTokens
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Summarizer{chat: chat, byteBudget: budget, concurrency: concurrency}
}

// Summarize produces a single summary for transcript. A transcript that fits
// one chunk is summarized directly; otherwise each chunk is summarized
// concurrently and a final call merges the parts. A failed chunk fails the
// whole summary.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	chunks := ChunkTranscript(transcript, s.byteBudget)
	if len(chunks) == 0 {
		return "", errors.New("cannot summarize empty transcript")
	}

	if len(chunks) == 1 {
		summary, err := s.chat.Chat(ctx, []llm.Message{
			llm.SystemMessage(summaryPrompt),
			llm.UserMessage(chunks[0]),
		})
		if err != nil {
			return "", fmt.Errorf("summarizing transcript: %w", err)
		}
		return summary, nil
	}

	partials := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			summary, err := s.chat.Chat(gctx, []llm.Message{
				llm.SystemMessage(chunkPrompt),
				llm.UserMessage(chunk),
			})
			if err != nil {
				return fmt.Errorf("summarizing chunk %d/%d: %w", i+1, len(chunks), err)
			}
			partials[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	merged, err := s.chat.Chat(ctx, []llm.Message{
		llm.SystemMessage(mergePrompt),
		llm.UserMessage(strings.Join(partials, "\n\n---\n\n")),
	})
	if err != nil {
		return "", fmt.Errorf("merging %d chunk summaries: %w", len(partials), err)
	}
	return merged, nil
}
