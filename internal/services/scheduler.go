package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartSeedRotation rotates the classic-engine server seed on a fixed
// interval so no seed commits to more than one day of games. The retired
// seed is logged for post-hoc verification requests.
func StartSeedRotation(engine *GameEngineV1, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			retired := engine.RotateServerSeed()
			log.Printf("[Scheduler] Rotated server seed, retired seed: %s", retired)
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
