package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/thereayou/guildchat/internal/storage"
)

// Время на компенсирующее удаление, не зависящее от контекста запроса
const reclaimTimeout = 30 * time.Second

// reclaimBlobs удаляет объекты, которые больше никому не принадлежат.
// Выполняется даже после отмены запроса; отсутствующие объекты не считаются ошибкой.
func reclaimBlobs(ctx context.Context, blobs storage.BlobStore, keys []string) {
	if len(keys) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reclaimTimeout)
	defer cancel()

	for _, key := range keys {
		if err := blobs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrBlobNotFound) {
			log.Printf("Failed to reclaim blob %s: %v", key, err)
		}
	}
}
