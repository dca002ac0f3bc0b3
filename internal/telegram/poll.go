package telegram

import "context"

type wireUpdate struct {
	UpdateID      int64          `json:"update_id"`
	Message       *wireMsg       `json:"message,omitempty"`
	CallbackQuery *callbackQuery `json:"callback_query,omitempty"`
}

type wireMsg struct {
	MessageID int64     `json:"message_id"`
	From      *wireUser `json:"from,omitempty"`
	Chat      wireChat  `json:"chat"`
	Text      string    `json:"text,omitempty"`
	Date      int64     `json:"date"`
}

type wireUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

type wireChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type callbackQuery struct {
	ID      string   `json:"id"`
	From    wireUser `json:"from"`
	Message *wireMsg `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// Callback carries a button press: the query id to acknowledge and the
// message to edit.
type Callback struct {
	ID        string
	Data      string
	MessageID int64
}

// Update is an inbound text message or button press.
type Update struct {
	UpdateID int64
	ChatID   int64
	UserID   int64
	Text     string
	Callback *Callback
}

// Poll fetches updates with getUpdates long polling. Returns only
// updates carrying a text message or a callback query.
func (c *Client) Poll(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         timeoutSec,
		"allowed_updates": []string{"message", "callback_query"},
	}

	var raw []wireUpdate
	if err := c.do(ctx, "getUpdates", payload, &raw); err != nil {
		return nil, err
	}

	updates := make([]Update, 0, len(raw))
	for _, u := range raw {
		if u.Message != nil {
			if u.Message.From == nil || u.Message.Text == "" {
				continue
			}
			updates = append(updates, Update{
				UpdateID: u.UpdateID,
				UserID:   u.Message.From.ID,
				ChatID:   u.Message.Chat.ID,
				Text:     u.Message.Text,
			})
			continue
		}

		if u.CallbackQuery != nil {
			if u.CallbackQuery.Data == "" || u.CallbackQuery.Message == nil {
				continue
			}
			updates = append(updates, Update{
				UpdateID: u.UpdateID,
				UserID:   u.CallbackQuery.From.ID,
				ChatID:   u.CallbackQuery.Message.Chat.ID,
				Callback: &Callback{
					ID:        u.CallbackQuery.ID,
					Data:      u.CallbackQuery.Data,
					MessageID: u.CallbackQuery.Message.MessageID,
				},
			})
		}
	}

	return updates, nil
}
