// Package benchmark provides performance benchmarks for rolloutkv.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Compare backends or transports:
//
//	go test -bench='BenchmarkEngine.*/badger' -benchmem -count=5 ./internal/tests/benchmark/... | tee new.txt
//	benchstat old.txt new.txt
package benchmark
