package session

import (
	"fmt"

	"go.uber.org/zap"
)

// Setup is the one-time startup step for the session subsystem. It validates the
// signing secret, derives cookie attributes and logs the environment
// classification once. A *ConfigurationError means the process must not serve traffic.
func Setup(env EnvironmentFacts, secret []byte, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	codec, err := NewCodec(secret, env.Production)
	if err != nil {
		return nil, fmt.Errorf("session setup: %w", err)
	}

	attrs := DeriveCookieAttributes(env)

	logger.Info("session_environment",
		zap.Bool("production", env.Production),
		zap.Bool("cross_site", env.CrossSite),
		zap.Bool("force_secure", env.ForceSecure),
		zap.Bool("cookie_secure", attrs.Secure),
		zap.String("cookie_same_site", attrs.SameSiteString()),
		zap.String("cookie_domain", attrs.Domain),
		zap.Bool("explicit_domain_ignored", env.Domain != "" && attrs.Domain == ""),
	)
	if codec.UsingDevelopmentSecret() {
		logger.Warn("session_using_development_secret")
	}

	return NewStore(codec, attrs, logger), nil
}
