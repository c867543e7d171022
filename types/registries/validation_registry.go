package registries

import (
	"bytes"
	"context"
	"encoding/json"
	"path"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"

	"stac-validator/types"
	"stac-validator/types/config"
	"stac-validator/types/dataclasses"
	"stac-validator/types/interfaces"
)

const (
	reportsPrefix = "reports"
	// DefaultMaxReports bounds the reports a registry keeps in memory.
	DefaultMaxReports = 1000
)

var (
	onceValidationRegistry     sync.Once
	validationRegistryInstance *ValidationRegistry
)

func GetValidationRegistry(forceNewInstance ...bool) *ValidationRegistry {
	if len(forceNewInstance) > 0 && forceNewInstance[0] {
		newInstance := newValidationRegistryFromConfig(config.GetConfig())
		validationRegistryInstance = newInstance
		onceValidationRegistry = sync.Once{}
		onceValidationRegistry.Do(func() {})
		return newInstance
	}

	onceValidationRegistry.Do(func() {
		validationRegistryInstance = newValidationRegistryFromConfig(config.GetConfig())
	})

	return validationRegistryInstance
}

func newValidationRegistryFromConfig(_config config.Config) *ValidationRegistry {
	storage, err := types.NewStorage(_config.Storage)
	if err != nil {
		config.GetLogger().Errorf("Validation reports are kept in memory only: %v", err)
		return NewValidationRegistryWithLimit(nil, _config.Validation.MaxReports)
	}
	return NewValidationRegistryWithLimit(storage, _config.Validation.MaxReports)
}

// ValidationRegistry is a registry for validation Reports. Reports are
// written to storage when one is configured; memory holds only the most
// recently used ones, evicted reports are read back from storage.
type ValidationRegistry struct {
	sync.Mutex

	reports *lru.LRU[string, *dataclasses.Report]
	storage interfaces.Storage
}

// Ensure ValidationRegistry implements the ValidationRegistry
var _ interfaces.ValidationRegistry = (*ValidationRegistry)(nil)

func NewValidationRegistry(storage interfaces.Storage) *ValidationRegistry {
	return NewValidationRegistryWithLimit(storage, DefaultMaxReports)
}

func NewValidationRegistryWithLimit(storage interfaces.Storage, maxReports int) *ValidationRegistry {
	if maxReports <= 0 {
		maxReports = DefaultMaxReports
	}

	reports, err := lru.NewLRU[string, *dataclasses.Report](maxReports, func(id string, _ *dataclasses.Report) {
		config.GetLogger().Debugf("Report %s evicted from memory", id)
	})
	if err != nil {
		// only a non-positive size fails
		panic(err)
	}

	return &ValidationRegistry{
		reports: reports,
		storage: storage,
	}
}

func reportKey(id string) string {
	return path.Join(reportsPrefix, id+".json")
}

func (r *ValidationRegistry) Add(report *dataclasses.Report) error {
	r.Lock()
	r.reports.Add(report.GetId(), report)
	r.Unlock()

	if r.storage == nil {
		return nil
	}

	content, err := json.Marshal(report)
	if err != nil {
		return err
	}

	return r.storage.PutObjectBytes(context.Background(), reportKey(report.GetId()), bytes.NewBuffer(content))
}

// Get looks the report up in memory first and in storage second.
func (r *ValidationRegistry) Get(id string) (*dataclasses.Report, bool) {
	r.Lock()
	report, found := r.reports.Get(id)
	r.Unlock()

	if found || r.storage == nil {
		return report, found
	}

	ctx := context.Background()
	if !r.storage.ObjectExists(ctx, reportKey(id)) {
		return nil, false
	}

	content, err := r.storage.GetObjectBytes(ctx, reportKey(id))
	if err != nil {
		config.GetLogger().Warnf("Failed to read report %s: %v", id, err)
		return nil, false
	}

	report = &dataclasses.Report{}
	if err := json.Unmarshal(content.Bytes(), report); err != nil {
		config.GetLogger().Warnf("Failed to decode report %s: %v", id, err)
		return nil, false
	}

	r.Lock()
	r.reports.Add(id, report)
	r.Unlock()

	return report, true
}

// GetAll returns the reports currently held in memory.
func (r *ValidationRegistry) GetAll() map[string]*dataclasses.Report {
	r.Lock()
	defer r.Unlock()

	result := make(map[string]*dataclasses.Report, r.reports.Len())
	for _, id := range r.reports.Keys() {
		if report, found := r.reports.Peek(id); found {
			result[id] = report
		}
	}
	return result
}

// Delete forgets the in-memory copy; a stored report stays readable.
func (r *ValidationRegistry) Delete(id string) {
	r.Lock()
	defer r.Unlock()

	r.reports.Remove(id)
}

func (r *ValidationRegistry) Shutdown(ctx context.Context) error {
	r.Lock()
	defer r.Unlock()

	r.reports.Purge()
	return ctx.Err()
}
