// Package engine implements addressed store instances and their operations.
//
// A Registry maps instance names to Instances, opening each instance's
// backend on first use. Every Instance serializes its writes and
// read-then-write operations so that increments and getAndSet are atomic.
// Dispatch turns protocol requests into instance calls.
package engine
