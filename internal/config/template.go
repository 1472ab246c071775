package config

const template = `# IMEPay gateway configuration.
# Every imepay.* key can be overridden by the IMEPAY_* variable noted next to it.
imepay:
  api_user: ""            # IMEPAY_API_USER
  api_password: ""        # IMEPAY_API_PASSWORD
  module: ""              # IMEPAY_MODULE
  merchant_code: ""       # IMEPAY_MERCHANT_CODE
  env: sandbox            # IMEPAY_ENV: live | sandbox
  callback_method: GET    # IMEPAY_CALLBACK_METHOD: GET | POST
  callback_url: ""        # IMEPAY_CALLBACK_URL
  cancel_url: ""          # IMEPAY_CANCEL_URL
  live_api_url: ""        # IMEPAY_LIVE_API_URL, required when env is live
  live_checkout_url: ""   # IMEPAY_LIVE_CHECKOUT_URL, required when env is live
  timeout: 15s            # IMEPAY_TIMEOUT

server:
  port: 8080              # PORT
  checkout_rate_limit: 0  # checkout requests per client IP per window, needs redis; 0 disables
  checkout_rate_window: 1m

log:
  level: info             # LOG_LEVEL: trace|debug|info|warn|error
  format: json            # LOG_FORMAT: json|console
  sampling: false

admin:
  api_key: ""             # ADMIN_API_KEY, guards the recheck endpoint

database:
  url: ""                 # DATABASE_URL, payments are kept in memory when empty
  max_conns: 10

redis:
  url: ""                 # REDIS_URL (host:port), callback locking is local when empty
  password: ""            # REDIS_PASSWORD
  db: 0
  lock_ttl: 30s

scheduler:
  reconcile_interval: 1m  # how often stale pending payments are rechecked
  stale_after: 10m        # age a pending payment must reach before a recheck
  batch_size: 100
  workers: 4              # concurrent rechecks per pass
`

// Template returns the documented YAML configuration template.
func Template() string { return template }
