package web

import (
	"github.com/go-rod/rod"
)

// StorageEntry is one web storage item with the value already hashed. The
// digest is computed inside the page so the raw value never reaches this
// process. Size is the UTF-8 byte length of the raw value.
type StorageEntry struct {
	Key         string `json:"key"`
	HashedValue string `json:"hashed_value"`
	Size        int    `json:"size"`
}

// PageStorage holds the hashed localStorage and sessionStorage snapshot of
// one page.
type PageStorage struct {
	URL            string         `json:"url"`
	LocalStorage   []StorageEntry `json:"local_storage"`
	SessionStorage []StorageEntry `json:"session_storage"`
}

// storageDigestJS hashes every storage value with SubtleCrypto before it
// leaves the page. On insecure origins crypto.subtle is unavailable and the
// digest stays empty; the raw value is still never returned.
const storageDigestJS = `async () => {
	const digest = async (value) => {
		if (!window.crypto || !window.crypto.subtle) {
			return '';
		}
		const data = new TextEncoder().encode(value);
		const hash = await window.crypto.subtle.digest('SHA-256', data);
		return Array.from(new Uint8Array(hash)).map(b => b.toString(16).padStart(2, '0')).join('');
	};
	const collect = async (store) => {
		const entries = [];
		for (let i = 0; i < store.length; i++) {
			const key = store.key(i);
			const value = store.getItem(key) || '';
			entries.push({
				key: key,
				hashed_value: await digest(value),
				size: new TextEncoder().encode(value).length,
			});
		}
		return entries;
	};
	return {
		local_storage: await collect(window.localStorage),
		session_storage: await collect(window.sessionStorage),
	};
}`

// CollectStorage evaluates the in-page digest script and returns the hashed
// storage snapshot for the page's current URL.
func CollectStorage(page *rod.Page, url string) (PageStorage, error) {
	storage := PageStorage{URL: url}
	result, err := page.Eval(storageDigestJS)
	if err != nil {
		return storage, err
	}
	for _, item := range result.Value.Get("local_storage").Arr() {
		storage.LocalStorage = append(storage.LocalStorage, StorageEntry{
			Key:         item.Get("key").Str(),
			HashedValue: item.Get("hashed_value").Str(),
			Size:        item.Get("size").Int(),
		})
	}
	for _, item := range result.Value.Get("session_storage").Arr() {
		storage.SessionStorage = append(storage.SessionStorage, StorageEntry{
			Key:         item.Get("key").Str(),
			HashedValue: item.Get("hashed_value").Str(),
			Size:        item.Get("size").Int(),
		})
	}
	return storage, nil
}
