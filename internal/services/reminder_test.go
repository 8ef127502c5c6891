package services

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-fees/internal/models"
	"github.com/diewo77/go-fees/internal/notify"
)

type sentMessage struct {
	channel notify.Channel
	to      string
	body    string
}

type fakeNotifier struct {
	sent []sentMessage
	fail error
}

func (n *fakeNotifier) Send(_ context.Context, ch notify.Channel, to, body string) error {
	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, sentMessage{channel: ch, to: to, body: body})
	return nil
}

func TestSendReminder(t *testing.T) {
	f := newFixture(t, 1)
	fee := f.assignedFee("120000", "80000")
	n := &fakeNotifier{}
	svc := NewReminderService(f.db, f.dir, n, f.opts)

	rem, err := svc.Send(f.ctx, ReminderInput{StudentFeeID: fee.ID, Channel: notify.ChannelSMS, UserID: f.user})
	require.NoError(t, err)
	assert.True(t, rem.Delivered)
	assert.Equal(t, models.ReminderTypeManual, rem.Type)
	require.Len(t, n.sent, 1)
	assert.Equal(t, f.students[0].Phone, n.sent[0].to)
	assert.Contains(t, n.sent[0].body, "UGX 200000.00")
	assert.Contains(t, n.sent[0].body, "2025-12-31")

	rem, err = svc.Send(f.ctx, ReminderInput{StudentFeeID: fee.ID, Channel: notify.ChannelEmail, Message: "  Please pay  "})
	require.NoError(t, err)
	assert.Equal(t, "Please pay", rem.Message)
	assert.Equal(t, f.students[0].Email, rem.Recipient)

	n.fail = errors.New("gateway timeout")
	rem, err = svc.Send(f.ctx, ReminderInput{StudentFeeID: fee.ID, Channel: notify.ChannelWhatsApp})
	require.NoError(t, err, "delivery failures are recorded, not returned")
	assert.False(t, rem.Delivered)
	assert.Equal(t, "gateway timeout", rem.Error)

	got := f.reload(fee.ID)
	require.Len(t, got.Reminders, 3)
	delivered := 0
	for _, r := range got.Reminders {
		if r.Delivered {
			delivered++
		}
	}
	assert.Equal(t, 2, delivered)
}

func TestDueReminders(t *testing.T) {
	f := newFixture(t, 2)
	st := f.activeStructure("120000", "80000")
	_, err := f.assignment().AssignToClass(f.ctx, st.ID, f.user)
	require.NoError(t, err)
	sched := f.schedule(true, "40", "30", "30")
	_, err = f.schedules().ApplySchedule(f.ctx, sched.ID, f.user)
	require.NoError(t, err)

	// Term 1 is due on April 1st, inside the default seven day window.
	march28 := time.Date(2025, 3, 28, 12, 0, 0, 0, time.UTC)
	opts := f.opts
	opts.Now = func() time.Time { return march28 }
	n := &fakeNotifier{}
	svc := NewReminderService(f.db, f.dir, n, opts)

	due, err := svc.Due(f.ctx, testNow)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = svc.Due(f.ctx, march28)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "Term 1", due[0].InstallmentName)
	assert.True(t, due[0].Balance.Equal(d("80000")))

	delivered, err := svc.SendDue(f.ctx, notify.ChannelSMS, f.user)
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	require.Len(t, n.sent, 2)
	assert.Contains(t, n.sent[0].body, "Term 1 of UGX 80000.00 is due on 2025-04-01")

	due, err = svc.Due(f.ctx, march28)
	require.NoError(t, err)
	assert.Empty(t, due, "installments reminded within a day are skipped")

	fees, err := f.assignment().ListStudentFees(f.ctx, StudentFeeFilter{})
	require.NoError(t, err)
	_, err = f.payments(nil).RecordPayment(f.ctx, cash(fees[0].ID, "80000"))
	require.NoError(t, err)
	due, err = svc.Due(f.ctx, march28.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Len(t, due, 1, "paid installments are not reminded")
}
