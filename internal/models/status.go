package models

// StorageStats reports disk usage of the volume holding the storage root.
type StorageStats struct {
	TotalBytes  uint64  `json:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// StatusResponse is returned by the authenticated status endpoint.
type StatusResponse struct {
	Uptime  float64      `json:"uptime"`
	Folders int          `json:"folders"`
	Storage StorageStats `json:"storage"`
}
