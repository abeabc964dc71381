package dataset

// FilterDecodable runs check on every image path and returns a dataset without
// the samples that failed, plus the paths that were dropped. Order is kept.
// Filtering once up front means later fetches never have to skip an image.
func FilterDecodable(d *Synth90kDataset, check func(path string) error) (*Synth90kDataset, []string) {
	kept := &Synth90kDataset{
		samples: make([]Sample, 0, len(d.samples)),
		labeled: d.labeled,
	}
	var dropped []string

	for _, s := range d.samples {
		if err := check(s.ImagePath()); err != nil {
			dropped = append(dropped, s.ImagePath())
			continue
		}
		kept.samples = append(kept.samples, s)
	}

	return kept, dropped
}
