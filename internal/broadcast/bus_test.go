package broadcast_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/scorecast/internal/broadcast"
	"github.com/okian/scorecast/internal/domain/model"
	"github.com/okian/scorecast/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// display records what it rendered and checks renders never overlap.
type display struct {
	mu       sync.Mutex
	rendered []model.UpdateEvent

	active      atomic.Int32
	overlapped  atomic.Bool
	renderDelay time.Duration
	fail        error
	panics      bool
}

func (d *display) Receive(ctx context.Context, e model.UpdateEvent) error {
	if d.active.Add(1) > 1 {
		d.overlapped.Store(true)
	}
	defer d.active.Add(-1)

	if d.renderDelay > 0 {
		time.Sleep(d.renderDelay)
	}
	if d.panics {
		panic("display crashed")
	}

	d.mu.Lock()
	d.rendered = append(d.rendered, e)
	d.mu.Unlock()
	return d.fail
}

func (d *display) names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.rendered))
	for i, e := range d.rendered {
		out[i] = e.FullName
	}
	return out
}

func (d *display) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rendered)
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func newStartedBus(shards int) (*broadcast.Bus, func()) {
	bus := broadcast.NewBus(broadcast.WithShards(shards), broadcast.WithQueueSize(64))
	ctx, cancel := context.WithCancel(context.Background())
	bus.Start(ctx)
	return bus, func() {
		_ = bus.Stop(context.Background())
		cancel()
	}
}

func update(name string) model.UpdateEvent {
	return model.UpdateEvent{FullName: name}
}

func TestBus_FanOut(t *testing.T) {
	Convey("Given a bus with several registered displays", t, func() {
		bus, stop := newStartedBus(3)
		defer stop()
		ctx := context.Background()

		displays := make([]*display, 7)
		for i := range displays {
			displays[i] = &display{}
			So(bus.Register(displays[i]), ShouldBeTrue)
		}
		So(bus.Subscribers(), ShouldEqual, 7)

		Convey("When an event is published", func() {
			n := bus.Publish(ctx, update("A"))

			Convey("Then every display should render it exactly once", func() {
				So(n, ShouldEqual, 7)
				for _, d := range displays {
					d := d
					So(eventually(func() bool { return d.count() == 1 }), ShouldBeTrue)
				}
				time.Sleep(20 * time.Millisecond)
				for _, d := range displays {
					So(d.names(), ShouldResemble, []string{"A"})
				}
			})
		})

		Convey("When a display registers after a publish returned", func() {
			bus.Publish(ctx, update("before"))
			late := &display{}
			bus.Register(late)
			bus.Publish(ctx, update("after"))

			Convey("Then it should only see later events", func() {
				So(eventually(func() bool { return late.count() == 1 }), ShouldBeTrue)
				So(eventually(func() bool { return displays[0].count() == 2 }), ShouldBeTrue)
				So(late.names(), ShouldResemble, []string{"after"})
			})
		})

		Convey("When the same display registers twice", func() {
			So(bus.Register(displays[0]), ShouldBeFalse)
			bus.Publish(ctx, update("once"))

			Convey("Then it should still render each event once", func() {
				So(eventually(func() bool { return displays[0].count() == 1 }), ShouldBeTrue)
				time.Sleep(20 * time.Millisecond)
				So(displays[0].count(), ShouldEqual, 1)
				So(bus.Subscribers(), ShouldEqual, 7)
			})
		})
	})
}

func TestBus_NoSubscribers(t *testing.T) {
	Convey("Given a bus with no displays", t, func() {
		bus, stop := newStartedBus(2)
		defer stop()

		Convey("When an event is published", func() {
			n := bus.Publish(context.Background(), update("nobody"))

			Convey("Then it should be dropped without error", func() {
				So(n, ShouldEqual, 0)
				So(bus.Backlog(), ShouldEqual, 0)
			})
		})
	})
}

func TestBus_PerSubscriberOrder(t *testing.T) {
	Convey("Given displays with different render speeds", t, func() {
		bus, stop := newStartedBus(2)
		defer stop()
		ctx := context.Background()

		slow := &display{renderDelay: time.Millisecond}
		fast := &display{}
		bus.Register(slow)
		bus.Register(fast)

		Convey("When many events are published in sequence", func() {
			const total = 100
			want := make([]string, total)
			for i := 0; i < total; i++ {
				want[i] = fmt.Sprintf("e%03d", i)
				bus.Publish(ctx, update(want[i]))
			}

			Convey("Then each display should render them in publish order without overlap", func() {
				So(eventually(func() bool { return slow.count() == total }), ShouldBeTrue)
				So(eventually(func() bool { return fast.count() == total }), ShouldBeTrue)
				So(slow.names(), ShouldResemble, want)
				So(fast.names(), ShouldResemble, want)
				So(slow.overlapped.Load(), ShouldBeFalse)
				So(fast.overlapped.Load(), ShouldBeFalse)
			})
		})

		Convey("When a slow display is rendering", func() {
			blocked := &display{renderDelay: 200 * time.Millisecond}
			bus.Register(blocked)

			start := time.Now()
			for i := 0; i < 5; i++ {
				bus.Publish(ctx, update("x"))
			}

			Convey("Then publish should not wait for it", func() {
				So(time.Since(start), ShouldBeLessThan, 150*time.Millisecond)
				So(eventually(func() bool { return fast.count() == 5 }), ShouldBeTrue)
			})
		})
	})
}

func TestBus_Unregister(t *testing.T) {
	Convey("Given a registered display", t, func() {
		bus, stop := newStartedBus(1)
		defer stop()
		ctx := context.Background()

		d := &display{}
		witness := &display{}
		bus.Register(d)
		bus.Register(witness)

		Convey("When it unregisters between two publishes", func() {
			bus.Publish(ctx, update("e1"))
			So(eventually(func() bool { return d.count() == 1 }), ShouldBeTrue)

			So(bus.Unregister(d), ShouldBeTrue)
			bus.Publish(ctx, update("e2"))
			So(eventually(func() bool { return witness.count() == 2 }), ShouldBeTrue)

			Convey("Then it should only have the first event", func() {
				So(d.names(), ShouldResemble, []string{"e1"})
				So(bus.Subscribers(), ShouldEqual, 1)
			})
		})

		Convey("When it unregisters before any publish", func() {
			bus.Unregister(d)
			bus.Publish(ctx, update("e1"))
			So(eventually(func() bool { return witness.count() == 1 }), ShouldBeTrue)

			Convey("Then it should receive nothing", func() {
				So(d.count(), ShouldEqual, 0)
			})
		})

		Convey("When it unregisters twice", func() {
			first := bus.Unregister(d)
			second := bus.Unregister(d)

			Convey("Then the second call should be a no-op", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
				So(bus.Subscribers(), ShouldEqual, 1)
			})
		})
	})
}

func TestBus_UnregisterWaitsForInFlightRender(t *testing.T) {
	Convey("Given a display blocked inside a render", t, func() {
		bus, stop := newStartedBus(1)
		defer stop()

		entered := make(chan struct{})
		var rendering atomic.Bool
		var after atomic.Int32
		var unregistered atomic.Bool

		sub := broadcast.NewFuncSubscriber(func(ctx context.Context, e model.UpdateEvent) error {
			if unregistered.Load() {
				after.Add(1)
			}
			if e.FullName == "block" {
				rendering.Store(true)
				close(entered)
				<-ctx.Done()
				rendering.Store(false)
				return ctx.Err()
			}
			return nil
		})
		bus.Register(sub)
		bus.Publish(context.Background(), update("block"))
		<-entered
		bus.Publish(context.Background(), update("queued"))

		Convey("When it is unregistered", func() {
			bus.Unregister(sub)
			unregistered.Store(true)

			Convey("Then the render should have ended and nothing more is delivered", func() {
				So(rendering.Load(), ShouldBeFalse)
				time.Sleep(20 * time.Millisecond)
				So(after.Load(), ShouldEqual, 0)
			})
		})
	})
}

func TestBus_FailureIsolation(t *testing.T) {
	Convey("Given healthy and failing displays", t, func() {
		bus, stop := newStartedBus(2)
		defer stop()
		ctx := context.Background()

		failing := &display{fail: errors.New("socket gone")}
		crashing := &display{panics: true}
		healthy := &display{}
		bus.Register(failing)
		bus.Register(crashing)
		bus.Register(healthy)

		Convey("When events are published", func() {
			var n int
			So(func() {
				n = bus.Publish(ctx, update("one"))
				bus.Publish(ctx, update("two"))
			}, ShouldNotPanic)

			Convey("Then healthy displays should be unaffected", func() {
				So(n, ShouldEqual, 3)
				So(eventually(func() bool { return healthy.count() == 2 }), ShouldBeTrue)
				So(healthy.names(), ShouldResemble, []string{"one", "two"})
				So(eventually(func() bool { return failing.count() == 2 }), ShouldBeTrue)
				So(bus.Subscribers(), ShouldEqual, 3)
			})
		})
	})
}

func TestBus_ConcurrentMembership(t *testing.T) {
	Convey("Given displays churning while events are published", t, func() {
		bus, stop := newStartedBus(4)
		defer stop()
		ctx := context.Background()

		stable := &display{}
		bus.Register(stable)

		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					d := &display{}
					bus.Register(d)
					bus.Publish(ctx, update("churn"))
					bus.Unregister(d)
					bus.Unregister(d)
				}
			}()
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		Convey("Then it should finish without deadlock and leave only the stable display", func() {
			finished := false
			select {
			case <-done:
				finished = true
			case <-time.After(5 * time.Second):
			}
			So(finished, ShouldBeTrue)
			So(bus.Subscribers(), ShouldEqual, 1)
			So(eventually(func() bool { return stable.count() == 400 }), ShouldBeTrue)
			So(stable.overlapped.Load(), ShouldBeFalse)
		})
	})
}

func TestBus_DeliversAfterStartContextCanceled(t *testing.T) {
	Convey("Given a bus whose start context is canceled while a display is registered", t, func() {
		bus := broadcast.NewBus(broadcast.WithShards(1), broadcast.WithQueueSize(1))
		ctx, cancel := context.WithCancel(context.Background())
		bus.Start(ctx)
		d := &display{}
		bus.Register(d)
		cancel()

		Convey("When events are published during shutdown", func() {
			pubCtx, pubCancel := context.WithTimeout(context.Background(), time.Second)
			defer pubCancel()
			var targeted []int
			for _, name := range []string{"s1", "s2", "s3"} {
				targeted = append(targeted, bus.Publish(pubCtx, update(name)))
			}

			Convey("Then each one is still delivered before Stop", func() {
				So(targeted, ShouldResemble, []int{1, 1, 1})
				So(eventually(func() bool { return d.count() == 3 }), ShouldBeTrue)
				So(d.names(), ShouldResemble, []string{"s1", "s2", "s3"})
				So(bus.Stop(context.Background()), ShouldBeNil)
			})
		})
	})
}

func TestBus_Stop(t *testing.T) {
	Convey("Given a started bus with a display", t, func() {
		bus := broadcast.NewBus(broadcast.WithShards(1))
		bus.Start(context.Background())
		d := &display{}
		bus.Register(d)

		Convey("When it is stopped", func() {
			So(bus.Stop(context.Background()), ShouldBeNil)

			Convey("Then subscribers are released and publishes are ignored", func() {
				So(bus.Subscribers(), ShouldEqual, 0)
				So(bus.Publish(context.Background(), update("late")), ShouldEqual, 0)
				So(bus.Stop(context.Background()), ShouldBeNil)
			})
		})
	})
}
