// Package collect drives a collection pass over a sample store.
//
// # Overview
//
// A pass is a Plan: an ordered list of Steps. Each Step declares the
// samples it reads, the database items it needs, and the items it writes,
// and carries a function that does the work through a Collector. The plan
// is validated before anything runs:
//
//   - every needed item is written by an earlier step
//   - no item is written by two steps
//   - no sample is consumed twice, or peeked after being consumed
//
// Run executes the steps in order and stops at the first error, returning
// no database at all. Samples left unconsumed at the end are logged as
// warnings and listed in the Report.
//
// # Usage
//
//	plan := collect.NewPlan[bitcoord.FrameBit]()
//	plan.Add(collect.Step[bitcoord.FrameBit]{
//		Name:   "clb-ff-init",
//		Reads:  []collect.Read{{Key: samples.Key{Tile: "CLB", Bel: "FF0", Attr: "INIT", Val: "1"}}},
//		Writes: []tiledb.Key{{Tile: "CLB", Bel: "FF0", Attr: "INIT"}},
//		Run: func(c *collect.Collector[bitcoord.FrameBit]) error {
//			return c.CollectBit("CLB", "FF0", "INIT", "1")
//		},
//	})
//	db, report, err := plan.Run(store, logger)
package collect
