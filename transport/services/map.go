// Package services declares the messages of the map
// service shared by RPC frontends and clients
package services

const (
	// MapServiceName is the full name of the RPC service
	MapServiceName = "murre.MapService"

	PutMethod         = "Put"
	GetMethod         = "Get"
	RemoveMethod      = "Remove"
	TriggerLoadMethod = "TriggerLoad"
)

// FullMethod returns the RPC path of a method
func FullMethod(method string) string {
	return "/" + MapServiceName + "/" + method
}

type PutRequest struct {
	Map   string `json:"map"`
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
	// TTLMillis is the time to live in milliseconds. Zero
	// applies the map's default.
	TTLMillis int64 `json:"ttl_millis,omitempty"`
}

type PutResponse struct {
	Replaced bool `json:"replaced"`
}

type GetRequest struct {
	Map string `json:"map"`
	Key []byte `json:"key"`
}

type GetResponse struct {
	Value []byte `json:"value,omitempty"`
	Found bool   `json:"found"`
}

type RemoveRequest struct {
	Map string `json:"map"`
	Key []byte `json:"key"`
}

type RemoveResponse struct {
	Removed bool `json:"removed"`
}

type TriggerLoadRequest struct {
	Map string `json:"map"`
}

type TriggerLoadResponse struct {
	AlreadyLoaded bool `json:"already_loaded"`
}
