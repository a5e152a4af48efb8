package config

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	// EnvBackupDir overrides paths.backups.
	EnvBackupDir = "MX_BACKUP_DIR"
	// EnvLogDir overrides paths.logs.
	EnvLogDir = "MX_LOG_DIR"

	defaultPort       = 2333
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "mx_console"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0
	defaultMongoURI   = "mongodb://localhost:27017"
	defaultMongoDB    = "mx_console"

	defaultBackupsDir       = "backup"
	defaultLogsDir          = "logs"
	defaultMaxArtifactBytes = 100 << 20
	defaultHistoryLimit     = 20
	defaultAutoInterval     = "24h"
	defaultS3PathTemplate   = "backups/{Y}/{m}/{filename}"

	StoreDriverMySQL  = "mysql"
	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"
)

var defaultBackupFormats = []string{"sql", "bson", "excel"}

var knownBackupFormats = map[string]struct{}{
	"sql":   {},
	"bson":  {},
	"excel": {},
}
