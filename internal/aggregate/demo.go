package aggregate

import "github.com/monsoonwatch/flood-risk-service/internal/domain"

// DemoWards returns the hardcoded last-resort ward set, served when the
// predictor, the weather source, and the store are all unreachable. Thresholds
// reflect each ward's rough drainage capacity in mm of rain per 3h window.
func DemoWards() []domain.Ward {
	return []domain.Ward{
		{ID: "W001", Name: "Karol Bagh", Zone: "Central Delhi", FailureThreshold: 55},
		{ID: "W002", Name: "Connaught Place", Zone: "Central Delhi", FailureThreshold: 70},
		{ID: "W003", Name: "Hauz Khas", Zone: "South Delhi", FailureThreshold: 65},
		{ID: "W004", Name: "Saket", Zone: "South Delhi", FailureThreshold: 60},
		{ID: "W005", Name: "Laxmi Nagar", Zone: "East Delhi", FailureThreshold: 45},
		{ID: "W006", Name: "Rohini", Zone: "North West Delhi", FailureThreshold: 60},
		{ID: "W007", Name: "Dwarka", Zone: "West Delhi", FailureThreshold: 65},
		{ID: "W008", Name: "Najafgarh", Zone: "South West Delhi", FailureThreshold: 40},
	}
}
