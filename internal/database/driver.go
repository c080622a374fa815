package database

import (
	"fmt"
	"strings"
)

// Driver はストアの種類を表す。
type Driver string

const (
	// DriverMongo はMongoDBをドキュメントストアとして使用する。
	DriverMongo Driver = "mongodb"
	// DriverPostgres はPostgreSQLを使用する。
	DriverPostgres Driver = "postgres"
)

// DetectDriver は接続URLのスキームからストアの種類を判定する。
func DetectDriver(databaseURL string) (Driver, error) {
	scheme, _, ok := strings.Cut(databaseURL, "://")
	if !ok {
		return "", fmt.Errorf("database url has no scheme")
	}

	switch strings.ToLower(scheme) {
	case "mongodb", "mongodb+srv":
		return DriverMongo, nil
	case "postgres", "postgresql":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database scheme: %q", scheme)
	}
}
