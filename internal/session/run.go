package session

import (
	"context"

	coacherrors "github.com/hpungsan/bitcoach/internal/errors"
)

// Run drives s against an interactive host until the session terminates.
// It returns nil after the termination phrase, the host's error when input
// fails, and a TRANSPORT_FAILED error when the model cannot be reached.
func Run(ctx context.Context, s *Session, host Host) error {
	for {
		input, err := host.Input(ctx)
		if err != nil {
			s.End(ctx, EndInputClosed)
			return err
		}

		out, err := s.Send(ctx, input)
		if err != nil {
			if coacherrors.Is(err, coacherrors.ErrTransportFailed) {
				if werr := host.Write(ctx, UnavailableNotice); werr != nil {
					s.log.WithError(werr).Warn("failed to show notice")
				}
				if merr := host.ShowMenu(ctx); merr != nil {
					s.log.WithError(merr).Warn("failed to restore menu")
				}
			}
			return err
		}

		if out.Ended {
			if err := host.Write(ctx, out.Message); err != nil {
				return err
			}
			return host.ShowMenu(ctx)
		}

		if err := host.Write(ctx, out.Reply); err != nil {
			s.End(ctx, EndInputClosed)
			return err
		}
	}
}
