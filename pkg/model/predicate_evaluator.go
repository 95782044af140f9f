package model

type predicateEvaluator interface {
	// Checks whether the trainer can teach at the given slot
	TrainerAvailable(trainer uint64, slot TimeSlot) bool

	// Checks whether the class' school offers the given slot (time of day and Saturday restrictions)
	SchoolOffers(class uint64, slot TimeSlot) bool

	// Checks whether the class' slot whitelist permits the given slot
	ClassPermits(class uint64, slot TimeSlot) bool

	// Checks whether the trainer is qualified to teach the lab
	Qualified(trainer, lab uint64) bool

	// Checks every predicate above at once
	Possible(class, lab, trainer uint64, slot TimeSlot) bool
}
