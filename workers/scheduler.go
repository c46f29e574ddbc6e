// workers/scheduler.go
package workers

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// StartLifecycleScheduler runs the three battle lifecycle workers on their
// cadences. Runs share no state with the handlers or each other: every
// transition is a conditional update keyed on the state previously read, so
// overlapping runs and manual actions are safe to race.
func StartLifecycleScheduler(db *gorm.DB, notifier Notifier) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: expire unaccepted invitations near their start.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			summary, err := RunAutoexpire(db, time.Now())
			if err != nil {
				log.Printf("[Autoexpire] Run aborted: %v", err)
				return
			}
			if summary.Processed > 0 {
				log.Printf("[Autoexpire] Processed %d battle(s)", summary.Processed)
			}
		}),
	)

	// Every minute: flip due accepted battles to live.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			summary, err := RunAutostart(db, notifier, time.Now())
			if err != nil {
				log.Printf("[Autostart] Run aborted: %v", err)
				return
			}
			if summary.Processed > 0 {
				log.Printf("[Autostart] Processed %d battle(s)", summary.Processed)
			}
		}),
	)

	// Every 30 seconds: settle live battles past their deadline. Overtime
	// windows are only 3 minutes, so this runs tighter than the others.
	_, _ = sched.NewJob(
		gocron.DurationJob(30*time.Second),
		gocron.NewTask(func() {
			summary, err := RunAutofinish(db, notifier, time.Now())
			if err != nil {
				log.Printf("[Autofinish] Run aborted: %v", err)
				return
			}
			if summary.Processed > 0 {
				log.Printf("[Autofinish] Processed %d battle(s)", summary.Processed)
			}
		}),
	)
}
