// Package heartbeat broadcasts agent status beacons and detects agents that
// go silent.
//
// A Sender publishes one Heartbeat per agent of its Source (normally a
// pool) on heartbeat.<agent-id> every interval:
//
//	sender, _ := heartbeat.NewSender(heartbeat.SenderConfig{
//	    Bus:      b,
//	    Source:   p,
//	    Pool:     "workers",
//	    Interval: 5 * time.Second,
//	})
//	_ = sender.Start(ctx)
//	defer sender.Stop()
//
// A Monitor, in the same process or another one on the same bus,
// subscribes to heartbeat.> and invokes OnDead callbacks once an agent has
// not been heard from within the timeout:
//
//	mon, _ := heartbeat.NewMonitor(heartbeat.MonitorConfig{Bus: b, Timeout: 15 * time.Second})
//	mon.OnDead(func(id string) { log.Printf("agent %s went silent", id) })
//	_ = mon.Start()
//
// Set the timeout to two or three times the send interval.
package heartbeat
