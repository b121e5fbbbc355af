package phash

import (
	"context"
	"image"
	"sync"
)

type workItem struct {
	index int
	img   image.Image
}

// HashAll hashes images with a fixed pool of workers. Results are returned in
// input order. It stops handing out work once ctx is done.
func HashAll(ctx context.Context, images []image.Image, workers int) ([]Hash, error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(images) {
		workers = len(images)
	}

	hashes := make([]Hash, len(images))
	workChan := make(chan workItem, len(images))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range workChan {
				// Each worker writes a distinct index.
				hashes[work.index] = Compute(work.img)
			}
		}()
	}

	var err error
send:
	for i, img := range images {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break send
		case workChan <- workItem{index: i, img: img}:
		}
	}
	close(workChan)
	wg.Wait()

	if err != nil {
		return nil, err
	}
	return hashes, nil
}
