package notifier

import (
	"context"
	"time"
)

const greeting = "Hello! I watch the treasury Safe. When the agent queues a transaction I will send it here for approval."

// RunBot is the Telegram long-poll loop. Only configured admins are
// answered; everyone else is ignored silently. Exits when ctx is
// cancelled.
func (s *Service) RunBot(ctx context.Context, pollTimeoutSec int) error {
	if pollTimeoutSec <= 0 {
		pollTimeoutSec = 30
	}

	var offset int64
	for {
		if ctx.Err() != nil {
			return nil
		}

		updates, err := s.tg.Poll(ctx, offset, pollTimeoutSec)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error().Err(err).Msg("telegram poll")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			if !s.isAdmin(u.UserID) {
				continue
			}

			if u.Callback != nil {
				s.HandleCallback(ctx, u.ChatID, u.Callback)
				continue
			}
			if u.Text == "/start" {
				if err := s.tg.Send(ctx, u.ChatID, greeting); err != nil {
					s.log.Error().Err(err).Msg("send greeting")
				}
			}
		}
	}
}

func (s *Service) isAdmin(userID int64) bool {
	for _, a := range s.admins {
		if a == userID {
			return true
		}
	}
	return false
}
