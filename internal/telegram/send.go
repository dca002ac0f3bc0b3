package telegram

import "context"

const maxChunkRunes = 4096

// Button is an inline keyboard button.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// Send splits text into ≤4096-rune chunks at newline boundaries and
// sends each chunk sequentially.
func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitAtNewlines(text, maxChunkRunes) {
		err := c.do(ctx, "sendMessage", map[string]any{
			"chat_id": chatID,
			"text":    chunk,
		}, nil)
		if err != nil {
			return err
		}
	}
	return nil
}

// SendWithButtons sends text with a single row of inline buttons.
// Returns the id of the sent message so it can be edited later.
func (c *Client) SendWithButtons(ctx context.Context, chatID int64, text string, buttons []Button) (int64, error) {
	var sent struct {
		MessageID int64 `json:"message_id"`
	}
	err := c.do(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
		"reply_markup": map[string]any{
			"inline_keyboard": [][]Button{buttons},
		},
	}, &sent)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditMessageText replaces the text of a previously sent message and
// drops its inline keyboard.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	return c.do(ctx, "editMessageText", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}, nil)
}

// AnswerCallback acknowledges a button press (removes the loading
// spinner). text is an optional notification, empty for a silent ack.
func (c *Client) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	return c.do(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
		"text":              text,
	}, nil)
}

// splitAtNewlines splits text into chunks of at most maxRunes runes,
// breaking only at newline boundaries. A window without a newline is
// hard-split so no content is ever dropped.
func splitAtNewlines(text string, maxRunes int) []string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return []string{text}
	}

	var chunks []string
	start := 0

	for start < len(runes) {
		end := start + maxRunes
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		splitAt := -1
		for i := end - 1; i >= start; i-- {
			if runes[i] == '\n' {
				splitAt = i
				break
			}
		}

		if splitAt < 0 {
			chunks = append(chunks, string(runes[start:end]))
			start = end
		} else {
			chunks = append(chunks, string(runes[start:splitAt+1]))
			start = splitAt + 1
		}
	}

	return chunks
}
