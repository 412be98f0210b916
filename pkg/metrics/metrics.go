package metrics

// RecordChunkCut records one block cut by the chunker, observing its size.
func RecordChunkCut(size uint64) {
	mu.Lock()
	c := m
	mu.Unlock()
	if c == nil {
		return
	}
	c.chunksCut.Inc()
	c.chunkSizeBytes.Observe(float64(size))
}

// RecordFileIndexed records one IndexFile call's outcome: "reindexed" or
// "up_to_date".
func RecordFileIndexed(outcome string) {
	mu.Lock()
	c := m
	mu.Unlock()
	if c == nil {
		return
	}
	c.filesIndexed.WithLabelValues(outcome).Inc()
}

// RecordDriveIteration records one Drive loop iteration's branch: one of
// "forward_demand", "deliver_bytes", "dispatch", or "idle".
func RecordDriveIteration(branch string) {
	mu.Lock()
	c := m
	mu.Unlock()
	if c == nil {
		return
	}
	c.driveIterations.WithLabelValues(branch).Inc()
}

// RecordBlockFed records one block successfully fed into a Sink.
func RecordBlockFed() {
	mu.Lock()
	c := m
	mu.Unlock()
	if c == nil {
		return
	}
	c.blocksFed.Inc()
}

// RecordBlockRequested records one block requested from a Source.
func RecordBlockRequested() {
	mu.Lock()
	c := m
	mu.Unlock()
	if c == nil {
		return
	}
	c.blocksRequested.Inc()
}
