package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/semmidev/mudvault/internal/domain"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestTelegramNotifier(t *testing.T) {
	Convey("Given a Telegram notifier", t, func() {
		ctx := context.Background()
		started := time.Date(2024, 6, 14, 4, 0, 0, 0, time.UTC)
		ok := domain.RunSummary{
			Target:   "4000",
			Stage:    domain.StageDone,
			Uploaded: "port4000_20240614T040000Z.tar.xz",
			Kept:     5,
			Deleted:  2,
			Started:  started,
			Finished: started.Add(42 * time.Second),
		}
		failed := domain.RunSummary{
			Target:      "4000",
			Stage:       domain.StageFailed,
			FailedStage: domain.StageUploading,
			Err:         errors.New("quota exceeded"),
		}

		Convey("When a run succeeds", func() {
			sender := &fakeSender{}
			err := NewTelegramWithSender(sender, 42, false).Notify(ctx, ok)

			Convey("A summary is posted to the chat", func() {
				So(err, ShouldBeNil)
				So(sender.sent, ShouldHaveLength, 1)

				msg := sender.sent[0].(tgbotapi.MessageConfig)
				So(msg.ChatID, ShouldEqual, 42)
				So(msg.Text, ShouldContainSubstring, "Backup of 4000 completed")
				So(msg.Text, ShouldContainSubstring, "Kept: 5, deleted: 2")
				So(msg.Text, ShouldContainSubstring, "2024-06-14 04:00:42 (42s)")
			})
		})

		Convey("When only failures are reported", func() {
			sender := &fakeSender{}
			n := NewTelegramWithSender(sender, 42, true)

			So(n.Notify(ctx, ok), ShouldBeNil)
			So(sender.sent, ShouldBeEmpty)

			So(n.Notify(ctx, failed), ShouldBeNil)
			So(sender.sent, ShouldHaveLength, 1)
			So(sender.sent[0].(tgbotapi.MessageConfig).Text, ShouldContainSubstring, "failed during UPLOADING")
		})

		Convey("When deletions failed", func() {
			partial := ok
			partial.Failures = []domain.DeleteFailure{{Filename: "port4000_20240101T000000Z.tar.xz", Err: errors.New("503")}}

			text := FormatSummary(partial)

			Convey("Each failure is listed", func() {
				So(text, ShouldContainSubstring, "completed with errors")
				So(text, ShouldContainSubstring, "port4000_20240101T000000Z.tar.xz: 503")
			})
		})

		Convey("When Telegram is unreachable", func() {
			sender := &fakeSender{err: errors.New("dial tcp: timeout")}
			err := NewTelegramWithSender(sender, 42, false).Notify(ctx, ok)

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "failed to send telegram notification")
		})
	})
}
