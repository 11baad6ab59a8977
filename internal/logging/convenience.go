package logging

// Convenience wrappers so callers can log without fetching a *Logger first.

func Safety(format string, args ...interface{})      { Get(CategorySafety).Info(format, args...) }
func SafetyDebug(format string, args ...interface{})  { Get(CategorySafety).Debug(format, args...) }
func SafetyError(format string, args ...interface{}) { Get(CategorySafety).Error(format, args...) }

func Dispatch(format string, args ...interface{})      { Get(CategoryDispatch).Info(format, args...) }
func DispatchDebug(format string, args ...interface{}) { Get(CategoryDispatch).Debug(format, args...) }
func DispatchError(format string, args ...interface{}) { Get(CategoryDispatch).Error(format, args...) }

func SpecLoop(format string, args ...interface{})      { Get(CategorySpecLoop).Info(format, args...) }
func SpecLoopDebug(format string, args ...interface{}) { Get(CategorySpecLoop).Debug(format, args...) }
func SpecLoopError(format string, args ...interface{}) { Get(CategorySpecLoop).Error(format, args...) }

func CodeEngine(format string, args ...interface{})      { Get(CategoryCodeEng).Info(format, args...) }
func CodeEngineDebug(format string, args ...interface{}) { Get(CategoryCodeEng).Debug(format, args...) }
func CodeEngineError(format string, args ...interface{}) { Get(CategoryCodeEng).Error(format, args...) }

func ELON(format string, args ...interface{})      { Get(CategoryELON).Info(format, args...) }
func ELONDebug(format string, args ...interface{}) { Get(CategoryELON).Debug(format, args...) }
func ELONError(format string, args ...interface{}) { Get(CategoryELON).Error(format, args...) }

func Heartbeat(format string, args ...interface{})      { Get(CategoryHeartbeat).Info(format, args...) }
func HeartbeatDebug(format string, args ...interface{}) { Get(CategoryHeartbeat).Debug(format, args...) }
func HeartbeatError(format string, args ...interface{}) { Get(CategoryHeartbeat).Error(format, args...) }

func Planner(format string, args ...interface{})      { Get(CategoryPlanner).Info(format, args...) }
func PlannerDebug(format string, args ...interface{}) { Get(CategoryPlanner).Debug(format, args...) }
func PlannerError(format string, args ...interface{}) { Get(CategoryPlanner).Error(format, args...) }

func Store(format string, args ...interface{})      { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }
func StoreWarn(format string, args ...interface{})  { Get(CategoryStore).Warn(format, args...) }
func StoreError(format string, args ...interface{}) { Get(CategoryStore).Error(format, args...) }

func LLM(format string, args ...interface{})      { Get(CategoryLLM).Info(format, args...) }
func LLMDebug(format string, args ...interface{}) { Get(CategoryLLM).Debug(format, args...) }
func LLMError(format string, args ...interface{}) { Get(CategoryLLM).Error(format, args...) }
