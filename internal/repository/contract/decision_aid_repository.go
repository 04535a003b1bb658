package contract

import "sdm-platform-be/pkg/tools"

type DecisionAidRepository interface {
	tools.DecisionAidRepository
}
