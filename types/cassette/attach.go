package cassette

import (
	"github.com/spf13/afero"

	"stac-validator/types/config"
)

// Attach installs a recorder for the configured cassette on the schema
// client. It returns nil without a cassette path.
func Attach(fs afero.Fs, cassetteConfig config.CassetteConfig, schemas *config.SchemasConfig) (*Recorder, error) {
	if cassetteConfig.Path == "" {
		return nil, nil
	}

	mode, err := ParseMode(cassetteConfig.Mode)
	if err != nil {
		return nil, err
	}

	recorder, err := NewRecorder(fs, cassetteConfig.Path, mode, nil)
	if err != nil {
		return nil, err
	}

	client := recorder.Client()
	client.Timeout = schemas.Timeout
	schemas.SetClient(client)

	config.GetLogger().Infof("Schema requests go through cassette %s (%s)", cassetteConfig.Path, mode)
	return recorder, nil
}
